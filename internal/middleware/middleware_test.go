package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials not allowed")
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("status %d allow %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

type stubAuthenticator struct {
	tokens map[string]*user.User
	err    error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*user.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.tokens[token]; ok {
		return u, nil
	}
	return nil, errs.ErrUnauthorized
}

func TestAuth(t *testing.T) {
	jane := &user.User{ID: primitive.NewObjectID(), FullName: "Jane"}
	auth := Auth(stubAuthenticator{tokens: map[string]*user.User{"good": jane}}, zap.NewNop().Sugar())

	var seen *user.User
	h := auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "good"}) }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK && seen != jane {
				t.Fatal("user not placed in context")
			}
		})
	}
}

func TestAuthStorageFailureIs500(t *testing.T) {
	h := Auth(stubAuthenticator{err: errors.New("mongo down")}, zap.NewNop().Sugar())(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	return s.allow, 90 * time.Second, s.err
}

func TestRateLimit(t *testing.T) {
	log := zap.NewNop().Sugar()

	blocked := &stubLimiter{allow: false}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	RateLimit(blocked, log)(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "90" {
		t.Fatalf("status %d retry-after %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if len(blocked.keys) != 1 || blocked.keys[0] != "192.0.2.7" {
		t.Fatalf("keys %v", blocked.keys)
	}

	broken := &stubLimiter{allow: true, err: errors.New("redis down")}
	rec = httptest.NewRecorder()
	RateLimit(broken, log)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("limiter failure blocked the request: %d", rec.Code)
	}
}

type countingLimiter struct {
	mu   sync.Mutex
	max  int
	hits map[string]int
}

func (c *countingLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[key]++
	return c.hits[key] <= c.max, time.Minute, nil
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	limiter := &countingLimiter{max: 1, hits: map[string]int{}}

	r := chi.NewRouter()
	r.Use(PeerAddr)
	r.Use(chimw.RealIP)
	r.Use(RateLimit(limiter, zap.NewNop().Sugar()))
	r.Get("/api/games", okHandler)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Real-IP", "10.0.0."+strconv.Itoa(i))
		req.Header.Set("X-Forwarded-For", "10.1.0."+strconv.Itoa(i))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK {
		t.Fatalf("first request: %d", codes[0])
	}
	for i, code := range codes[1:] {
		if code != http.StatusTooManyRequests {
			t.Fatalf("request %d with rotated headers: %d, want 429", i+2, code)
		}
	}
	if len(limiter.hits) != 1 || limiter.hits["203.0.113.9"] != 5 {
		t.Fatalf("hits %v", limiter.hits)
	}
}
