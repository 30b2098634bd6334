package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RedisRateLimiter counts requests per key in fixed windows.
type RedisRateLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, max int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, max: int64(max), window: window}
}

// Allow registers one hit for key and reports whether it is within the limit
// along with how long until the window resets.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	bucket, reset := windowBucket(key, time.Now(), r.window)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("rate limit: %w", err)
	}
	return incr.Val() <= r.max, reset, nil
}

// windowBucket names the counter for the fixed window containing now and
// reports the time left in that window.
func windowBucket(key string, now time.Time, window time.Duration) (string, time.Duration) {
	index := now.UnixNano() / int64(window)
	reset := time.Unix(0, (index+1)*int64(window)).Sub(now)
	return fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, index), reset
}
