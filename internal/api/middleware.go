package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gitping/relay/internal/metrics"
	"github.com/gitping/relay/internal/redis"
)

// RateLimitMiddleware enforces a sliding-window rate limit. keyFunc extracts
// the limit key from the request. A nil limiter or an unreachable Redis
// turns the middleware into a pass-through: throttling is protection, not a
// correctness requirement.
func RateLimitMiddleware(limiter *redis.RateLimiter, logger *zap.Logger, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				scope, _, _ := strings.Cut(key, ":")
				metrics.RecordRateLimitRejection(scope)
				retryAfter := time.Until(result.ResetAt).Seconds()
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"message": "Too many requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WebhookKeyFunc keys webhook rate limits by client IP.
func WebhookKeyFunc(r *http.Request) string {
	return "webhook:" + clientIP(r)
}

// AuthKeyFunc keys credential-endpoint rate limits by client IP.
func AuthKeyFunc(r *http.Request) string {
	return "auth:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
