package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/gitping/relay/internal/redis"
)

func newTestLimiter(t *testing.T, limit int) *redis.RateLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}

	client, err := redis.New(context.Background(), redis.Config{
		Host: mr.Host(),
		Port: port,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return redis.NewRateLimiter(client, zap.NewNop(), redis.RateLimitConfig{
		Limit:  limit,
		Window: time.Minute,
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_Blocks(t *testing.T) {
	limiter := newTestLimiter(t, 2)
	handler := RateLimitMiddleware(limiter, zap.NewNop(), WebhookKeyFunc)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddleware_KeysByClientIP(t *testing.T) {
	limiter := newTestLimiter(t, 1)
	handler := RateLimitMiddleware(limiter, zap.NewNop(), WebhookKeyFunc)(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", got)
	}
	if got := send("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("same IP over limit: expected 429, got %d", got)
	}
	if got := send("10.0.0.2"); got != http.StatusOK {
		t.Errorf("other IP: expected 200, got %d", got)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	handler := RateLimitMiddleware(nil, zap.NewNop(), WebhookKeyFunc)(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("nil limiter must pass through, got %d", rec.Code)
		}
	}
}

func TestRateLimitMiddleware_RedisDownPassesThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	client, err := redis.New(context.Background(), redis.Config{Host: mr.Host(), Port: port}, zap.NewNop())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	limiter := redis.NewRateLimiter(client, zap.NewNop(), redis.RateLimitConfig{Limit: 1, Window: time.Minute})

	mr.Close()

	handler := RateLimitMiddleware(limiter, zap.NewNop(), WebhookKeyFunc)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("unreachable redis must pass through, got %d", rec.Code)
	}
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"

	if got := WebhookKeyFunc(req); got != "webhook:192.0.2.7:5555" {
		t.Errorf("WebhookKeyFunc = %q", got)
	}
	if got := AuthKeyFunc(req); got != "auth:192.0.2.7:5555" {
		t.Errorf("AuthKeyFunc = %q", got)
	}

	req.Header.Set("X-Real-IP", "198.51.100.1")
	if got := WebhookKeyFunc(req); got != "webhook:198.51.100.1" {
		t.Errorf("X-Real-IP: WebhookKeyFunc = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := WebhookKeyFunc(req); got != "webhook:203.0.113.9" {
		t.Errorf("X-Forwarded-For wins: WebhookKeyFunc = %q", got)
	}
}
