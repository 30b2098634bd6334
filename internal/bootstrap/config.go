package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort       string        `mapstructure:"SERVER_PORT"`
	MongoUri         string        `mapstructure:"MONGO_URI"`
	MongoDatabase    string        `mapstructure:"MONGO_DATABASE"`
	RedisUrl         string        `mapstructure:"REDIS_URL"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	JwtSecret        string        `mapstructure:"JWT_SECRET"`
	JwtExpireDays    int           `mapstructure:"JWT_EXPIRE_DAYS"`
	CookieSecure     bool          `mapstructure:"COOKIE_SECURE"`
	CorsOrigins      string        `mapstructure:"CORS_ORIGINS"`
	RateLimitMax     int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindow  time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	GrpcHealthPort   string        `mapstructure:"GRPC_HEALTH_PORT"`
	PageLimitGames   int           `mapstructure:"PAGE_LIMIT_GAMES"`
	PageLimitPlayers int           `mapstructure:"PAGE_LIMIT_PLAYERS"`
	DefaultGameTime  int           `mapstructure:"DEFAULT_GAME_TIME"`
	LogDevelopment   bool          `mapstructure:"LOG_DEVELOPMENT"`
}

var defaults = map[string]any{
	"SERVER_PORT":        "5000",
	"MONGO_URI":          "mongodb://localhost:27017",
	"MONGO_DATABASE":     "covid-slayer",
	"REDIS_URL":          "localhost:6379",
	"REDIS_PASSWORD":     "",
	"JWT_SECRET":         "",
	"JWT_EXPIRE_DAYS":    7,
	"COOKIE_SECURE":      true,
	"CORS_ORIGINS":       "http://localhost:3000",
	"RATE_LIMIT_MAX":     100,
	"RATE_LIMIT_WINDOW":  "15m",
	"GRPC_HEALTH_PORT":   "",
	"PAGE_LIMIT_GAMES":   10,
	"PAGE_LIMIT_PLAYERS": 10,
	"DEFAULT_GAME_TIME":  60,
	"LOG_DEVELOPMENT":    false,
}

// Setup reads cfgPath as a dotenv file when it exists, then layers the
// process environment over the defaults.
func Setup(cfgPath string) (*Config, error) {
	if cfgPath != "" {
		if err := godotenv.Load(cfgPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", cfgPath, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JwtSecret) == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.JwtExpireDays <= 0 {
		return fmt.Errorf("JWT_EXPIRE_DAYS must be positive, got %d", c.JwtExpireDays)
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.DefaultGameTime < 30 || c.DefaultGameTime > 300 {
		return fmt.Errorf("DEFAULT_GAME_TIME must be between 30 and 300, got %d", c.DefaultGameTime)
	}
	return nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.JwtExpireDays) * 24 * time.Hour
}

func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CorsOrigins, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
