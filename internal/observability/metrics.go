package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Audit pipeline metrics
	AuditsTotal        *prometheus.CounterVec
	AuditStageDuration *prometheus.HistogramVec
	AuditsActive       prometheus.Gauge

	// Browser metrics
	PageLoadsTotal    *prometheus.CounterVec
	PageLoadDuration  *prometheus.HistogramVec
	CapturesTotal     *prometheus.CounterVec
	ScreenshotBytes   *prometheus.HistogramVec
	BrowserRelaunches prometheus.Counter

	// Vision provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderFallbacks       *prometheus.CounterVec

	// Store metrics
	StoreOpsTotal *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance with all Prometheus metrics registered
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sitelens"
	}

	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		AuditsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audits_total",
				Help:      "Total number of audits by target kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		AuditStageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "audit_stage_duration_seconds",
				Help:      "Duration of each audit pipeline stage",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		AuditsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "audits_active",
				Help:      "Number of audits currently in flight",
			},
		),

		PageLoadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_loads_total",
				Help:      "Total page loads by winning strategy",
			},
			[]string{"strategy", "status"},
		),
		PageLoadDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_load_duration_seconds",
				Help:      "Page load duration in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 45, 60, 90},
			},
			[]string{"strategy"},
		),
		CapturesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captures_total",
				Help:      "Total screenshot captures by variant",
			},
			[]string{"variant", "status"},
		),
		ScreenshotBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "screenshot_bytes",
				Help:      "Screenshot size after compression",
				Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 9),
			},
			[]string{"variant"},
		),
		BrowserRelaunches: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "browser_relaunches_total",
				Help:      "Times the shared browser had to be relaunched",
			},
		),

		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Vision provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Vision provider call duration in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"provider"},
		),
		ProviderFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fallbacks_total",
				Help:      "Times the chain fell through a provider to the next",
			},
			[]string{"provider", "reason"},
		),

		StoreOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_ops_total",
				Help:      "Report store operations by backend and outcome",
			},
			[]string{"backend", "op", "status"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAudit records the final outcome of one audit
func (m *Metrics) RecordAudit(kind, outcome string) {
	m.AuditsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordStage records one pipeline stage duration
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	m.AuditStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordPageLoad records a page load attempt
func (m *Metrics) RecordPageLoad(strategy, status string, duration time.Duration) {
	m.PageLoadsTotal.WithLabelValues(strategy, status).Inc()
	m.PageLoadDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordCapture records a screenshot capture
func (m *Metrics) RecordCapture(variant, status string, sizeBytes int) {
	m.CapturesTotal.WithLabelValues(variant, status).Inc()
	if sizeBytes > 0 {
		m.ScreenshotBytes.WithLabelValues(variant).Observe(float64(sizeBytes))
	}
}

// RecordProviderRequest records a vision provider call
func (m *Metrics) RecordProviderRequest(provider, outcome string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordProviderFallback records a fall-through to the next provider
func (m *Metrics) RecordProviderFallback(provider, reason string) {
	m.ProviderFallbacks.WithLabelValues(provider, reason).Inc()
}

// RecordStoreOp records a report store operation
func (m *Metrics) RecordStoreOp(backend, op, status string) {
	m.StoreOpsTotal.WithLabelValues(backend, op, status).Inc()
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Global metrics instance
var globalMetrics *Metrics

// InitMetrics initializes the global metrics instance
func InitMetrics(namespace string) *Metrics {
	globalMetrics = NewMetrics(namespace)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		globalMetrics = NewMetrics("sitelens")
	}
	return globalMetrics
}
