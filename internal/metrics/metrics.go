// Package metrics provides Prometheus instrumentation for the rewards engine.
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
	// EventsTotal counts processed events, partitioned by type and outcome
	// (applied, skipped, failed).
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_events_total",
		Help: "Total number of reward events processed",
	}, []string{"type", "outcome"})

	// EmitLatency tracks end-to-end emit processing latency.
	EmitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewards_emit_duration_seconds",
		Help:    "Reward event processing latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// SwallowedFailures counts emit failures that were logged and
	// discarded instead of surfaced to the caller.
	SwallowedFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_swallowed_failures_total",
		Help: "Reward credits lost to store failures (logged, not surfaced)",
	})

	// LevelUps counts wallet level increases.
	LevelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_level_ups_total",
		Help: "Total number of wallet level-ups",
	})

	// CheckinsTotal counts daily check-ins, partitioned by result
	// (accepted, duplicate).
	CheckinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_checkins_total",
		Help: "Total daily check-in attempts",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewards_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewards_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small and
		// user IDs only appear in GET paths that stay low-volume.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
