// Package metrics provides Prometheus metrics for the faceoff ranking service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the faceoff service.
type Manager struct {
	namespace        string
	subsystem        string
	requestBuckets  []float64
	backendBuckets  []float64
	enabled         bool
	refreshInterval time.Duration
	constLabels     map[string]string
	metricPrefix    string
	registry        prometheus.Registerer

	// Session lifecycle
	sessionsStarted   prometheus.Counter
	sessionsFinished  prometheus.Counter
	sessionsAbandoned prometheus.Counter
	activeSessions    prometheus.Gauge

	// Choices
	comparisonsApplied prometheus.Counter
	choicesDuplicate   prometheus.Counter
	choicesStale       prometheus.Counter
	choicesNoop        prometheus.Counter
	itemsPerSession    prometheus.Histogram

	// Session store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Catalog
	catalogRequests *prometheus.CounterVec
	catalogLatency  *prometheus.HistogramVec
	tokenRefreshes  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "faceoff",
		subsystem:       "ranking",
		requestBuckets:  prometheus.DefBuckets,
		backendBuckets:  []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		constLabels:     make(map[string]string),
		metricPrefix:    "",
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.sessionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sessions_started_total"),
		Help: "Total number of ranking sessions started or restarted",
	})
	m.sessionsFinished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sessions_finished_total"),
		Help: "Total number of ranking sessions that reached a final order",
	})
	m.sessionsAbandoned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sessions_abandoned_total"),
		Help: "Total number of sessions deleted before finishing",
	})
	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sessions_stored"),
		Help: "Number of sessions currently held by the session store",
	})

	m.comparisonsApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("comparisons_total"),
		Help: "Total number of human choices applied to a merge",
	})
	m.choicesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("choices_duplicate_total"),
		Help: "Choices ignored because their choice id was already applied",
	})
	m.choicesStale = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("choices_stale_total"),
		Help: "Choices rejected because they targeted a superseded session",
	})
	m.choicesNoop = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("choices_noop_total"),
		Help: "Choices received for sessions that were already finished",
	})
	m.itemsPerSession = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("session_items"),
		Help:    "Number of items ranked per started session",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("store_latency_milliseconds"),
		Help:    "Session and dataset store latency in milliseconds",
		Buckets: m.backendBuckets,
	}, []string{"backend", "operation"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("store_errors_total"),
		Help: "Session and dataset store errors",
	}, []string{"backend", "operation"})

	m.catalogRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("catalog_requests_total"),
		Help: "Requests sent to the external catalog",
	}, []string{"endpoint", "outcome"})
	m.catalogLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("catalog_latency_milliseconds"),
		Help:    "External catalog request latency in milliseconds",
		Buckets: m.backendBuckets,
	}, []string{"endpoint"})
	m.tokenRefreshes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("token_refreshes_total"),
		Help: "Number of app access token refreshes",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.requestBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "HTTP errors by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})
	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_type_total"),
		Help: "Errors by type and severity",
	}, []string{"error_type", "severity"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_memory_usage_bytes"),
		Help: "System memory usage in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_goroutine_count"),
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("system_gc_pause_time_milliseconds"),
		Help:    "GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

// RecordSessionStarted counts a started session and its size.
func RecordSessionStarted(items int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsStarted.Inc()
	globalManager.itemsPerSession.Observe(float64(items))
}

// RecordSessionFinished counts a session reaching its final order.
func RecordSessionFinished() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsFinished.Inc()
}

// RecordSessionAbandoned counts a deleted session.
func RecordSessionAbandoned() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsAbandoned.Inc()
}

// UpdateActiveSessions sets the number of stored sessions.
func UpdateActiveSessions(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.activeSessions.Set(float64(count))
}

// RecordComparison counts one applied choice.
func RecordComparison() {
	if !globalManager.enabled {
		return
	}
	globalManager.comparisonsApplied.Inc()
}

// RecordChoiceDuplicate counts a replayed choice id.
func RecordChoiceDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.choicesDuplicate.Inc()
}

// RecordChoiceStale counts a choice for a superseded session.
func RecordChoiceStale() {
	if !globalManager.enabled {
		return
	}
	globalManager.choicesStale.Inc()
}

// RecordChoiceNoop counts a choice received after the session finished.
func RecordChoiceNoop() {
	if !globalManager.enabled {
		return
	}
	globalManager.choicesNoop.Inc()
}

// RecordStoreLatency records store latency in milliseconds.
func RecordStoreLatency(backend, operation string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(backend, operation string) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeErrors.WithLabelValues(backend, operation).Inc()
}

// RecordCatalogRequest records one catalog call and its latency.
func RecordCatalogRequest(endpoint, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.catalogRequests.WithLabelValues(endpoint, outcome).Inc()
	globalManager.catalogLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// RecordTokenRefresh counts an app token refresh.
func RecordTokenRefresh() {
	if !globalManager.enabled {
		return
	}
	globalManager.tokenRefreshes.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval reports how often polled gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// SetRefreshInterval changes RefreshInterval. It must be called before the
// updaters start; non-positive values are ignored.
func SetRefreshInterval(interval time.Duration) {
	WithRefreshInterval(interval)(globalManager)
}

// SetEnabled switches recording of business metrics on or off.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
