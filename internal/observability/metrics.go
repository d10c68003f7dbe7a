package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the BFF.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Backend call metrics
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge
	BackendRetriesTotal        *prometheus.CounterVec

	// Boundary and query metrics
	CaseConversionsTotal *prometheus.CounterVec
	PageQueriesTotal     *prometheus.CounterVec
	PageQueryDuration    *prometheus.HistogramVec

	// Access metrics
	AuthzDecisionsTotal  *prometheus.CounterVec
	SessionRestoresTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffdesk_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffdesk_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Backend
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_backend_requests_total",
			Help: "Total number of backend requests.",
		}, []string{"path", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffdesk_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"path"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staffdesk_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BackendRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_backend_retries_total",
			Help: "Total number of backend request retries.",
		}, []string{"path"}),

		// Boundary and query
		CaseConversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_case_conversions_total",
			Help: "Total number of JSON bodies converted between camelCase and snake_case.",
		}, []string{"direction"}),
		PageQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_page_queries_total",
			Help: "Total number of paged queries.",
		}, []string{"resource", "mode", "outcome"}),
		PageQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staffdesk_page_query_duration_seconds",
			Help:    "Paged query duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"resource", "mode"}),

		// Access
		AuthzDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_authz_decisions_total",
			Help: "Total number of authorization gate decisions.",
		}, []string{"outcome"}),
		SessionRestoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffdesk_session_restores_total",
			Help: "Total number of session restores.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Backend
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendCircuitBreakerState,
		m.BackendRetriesTotal,
		// Boundary and query
		m.CaseConversionsTotal,
		m.PageQueriesTotal,
		m.PageQueryDuration,
		// Access
		m.AuthzDecisionsTotal,
		m.SessionRestoresTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordBackendRequest records a backend call. status is 0 when no response
// was received.
func (m *Metrics) RecordBackendRequest(path string, status int, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// SetBackendCircuitBreakerState sets the circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetBackendCircuitBreakerState(state float64) {
	m.BackendCircuitBreakerState.Set(state)
}

// RecordBackendRetry records a backend request retry.
func (m *Metrics) RecordBackendRetry(path string) {
	m.BackendRetriesTotal.WithLabelValues(path).Inc()
}

// RecordCaseConversion records one converted body.
func (m *Metrics) RecordCaseConversion(direction string) {
	m.CaseConversionsTotal.WithLabelValues(direction).Inc()
}

// RecordPageQuery records a paged query. mode is "backend" or "mock".
func (m *Metrics) RecordPageQuery(resource, mode, outcome string, duration time.Duration) {
	m.PageQueriesTotal.WithLabelValues(resource, mode, outcome).Inc()
	m.PageQueryDuration.WithLabelValues(resource, mode).Observe(duration.Seconds())
}

// RecordAuthzDecision records an authorization gate outcome.
func (m *Metrics) RecordAuthzDecision(outcome string) {
	m.AuthzDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionRestore records a session restore outcome.
func (m *Metrics) RecordSessionRestore(outcome string) {
	m.SessionRestoresTotal.WithLabelValues(outcome).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
