package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	webhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhooks_total",
			Help: "Total inbound webhooks by outcome (accepted, duplicate, muted, rejected)",
		},
		[]string{"outcome"},
	)

	pushTicketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_push_tickets_total",
			Help: "Push submission tickets by status",
		},
		[]string{"status"},
	)

	pushReceiptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_push_receipts_total",
			Help: "Push delivery receipts by status",
		},
		[]string{"status"},
	)

	pushBatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_push_batch_failures_total",
			Help: "Push batches that failed to submit entirely",
		},
	)

	staleTokensDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_stale_push_tokens_total",
			Help: "Device tokens reported as no longer registered",
		},
	)

	notificationsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_notifications_swept_total",
			Help: "Notifications deleted by the retention sweep",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebhook records an inbound webhook outcome
func RecordWebhook(outcome string) {
	webhooksTotal.WithLabelValues(outcome).Inc()
}

// RecordPushTicket records a push submission ticket status
func RecordPushTicket(status string) {
	pushTicketsTotal.WithLabelValues(status).Inc()
}

// RecordPushReceipt records a push delivery receipt status
func RecordPushReceipt(status string) {
	pushReceiptsTotal.WithLabelValues(status).Inc()
}

// RecordPushBatchFailure records a whole-batch submission failure
func RecordPushBatchFailure() {
	pushBatchFailures.Inc()
}

// RecordStaleTokens records tokens flagged as permanently dead
func RecordStaleTokens(count int) {
	staleTokensDetected.Add(float64(count))
}

// RecordNotificationsSwept records retention sweep deletions
func RecordNotificationsSwept(count int64) {
	notificationsSwept.Add(float64(count))
}

// RecordRateLimitRejection records a rate limit rejection for a scope
// ("webhook", "auth"), never for an individual key.
func RecordRateLimitRejection(scope string) {
	rateLimitRejections.WithLabelValues(scope).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
