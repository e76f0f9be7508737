package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters below
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storrsec_http_requests_total",
			Help: "Total number of HTTP requests served by the site",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storrsec_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storrsec_api_request_duration_seconds",
			Help:    "Latency of calls to the remote identity service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	authOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storrsec_auth_operations_total",
			Help: "Session operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	diagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storrsec_session_diagnostics_total",
			Help: "Locally recovered session failures by kind",
		},
		[]string{"kind"},
	)

	mountedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storrsec_mounted_sessions",
			Help: "Visitor sessions currently held in memory",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storrsec_api_circuit_breaker_state",
			Help: "Remote API circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Middleware records request counts and latency per matched route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPIRequest records one call to the remote service
func ObserveAPIRequest(operation string, err error, elapsed time.Duration) {
	apiRequestDuration.WithLabelValues(operation, outcome(err)).Observe(elapsed.Seconds())
}

// RecordAuthOperation counts a session operation by outcome
func RecordAuthOperation(operation string, err error) {
	authOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordDiagnostic counts a locally recovered failure
func RecordDiagnostic(kind string) {
	diagnosticsTotal.WithLabelValues(kind).Inc()
}

// SetMountedSessions publishes the number of in-memory sessions
func SetMountedSessions(n int) {
	mountedSessions.Set(float64(n))
}

// SetBreakerState publishes a breaker state as 0, 1 or 2
func SetBreakerState(name string, state float64) {
	breakerState.WithLabelValues(name).Set(state)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
