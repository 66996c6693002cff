package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	requestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Autoscaler metrics, exported for use by the reconciler and control loop
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acs_autoscaler_passes_total",
			Help: "Total reconciliation passes by outcome",
		},
		[]string{"outcome"},
	)

	BackoffSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "acs_autoscaler_backoff_seconds",
			Help: "Current delay before the next reconciliation pass",
		},
	)

	PoolActualCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acs_autoscaler_pool_actual_capacity",
			Help: "Agents currently in each pool",
		},
		[]string{"pool"},
	)

	PoolTargetCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acs_autoscaler_pool_target_capacity",
			Help: "Clamped target size computed for each pool",
		},
		[]string{"pool"},
	)

	DeploymentsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acs_autoscaler_deployments_in_flight",
			Help: "Capacity-mutating operations currently executing per cluster",
		},
		[]string{"cluster"},
	)

	DeploymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acs_autoscaler_deployment_duration_seconds",
			Help:    "Duration of serialized capacity-mutating operations",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"cluster", "status"},
	)

	TeardownStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acs_autoscaler_teardown_steps_total",
			Help: "Node teardown steps by step and status",
		},
		[]string{"step", "status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acs_autoscaler_notifications_total",
			Help: "Notifications delivered by sink and status",
		},
		[]string{"sink", "status"},
	)

	LeaderStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "acs_autoscaler_leader_status",
			Help: "Whether this instance is the leader (1) or not (0)",
		},
	)

	PanicsRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "acs_autoscaler_panics_recovered_total",
			Help: "Total number of recovered panics",
		},
	)
)

// Metrics returns a middleware that collects Prometheus metrics
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		status := strconv.Itoa(wrapped.statusCode)

		// Use Chi route pattern to avoid cardinality explosion from dynamic path segments
		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		// Normalize trailing slashes
		endpoint = strings.TrimRight(endpoint, "/")
		if endpoint == "" {
			endpoint = "/"
		}

		// Record metrics
		requestDuration.WithLabelValues(r.Method, endpoint, status).Observe(duration.Seconds())
		requestCount.WithLabelValues(r.Method, endpoint, status).Inc()
	})
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
