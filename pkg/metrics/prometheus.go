// Package metrics provides Prometheus metrics for the standings service.
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

// latencyBuckets covers sub-millisecond cache hits up to slow CLI fetches.
var latencyBuckets = []float64{0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // bucket layout

// Manager manages all Prometheus metrics for the standings service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Pipeline metrics
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	fetchLatency     prometheus.Histogram
	fetchErrors      *prometheus.CounterVec
	parseSkipped     prometheus.Counter
	rankedEntries    prometheus.Histogram

	// Cache metrics
	cacheRecords prometheus.Gauge
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter

	// Broadcast metrics
	broadcastPublished prometheus.Counter
	broadcastDropped   *prometheus.CounterVec
	broadcastDelivered prometheus.Counter
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	subscribers        prometheus.Gauge

	// Scheduler metrics
	scheduledRuns *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System metrics
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
		namespace:        "standings",
		subsystem:        "relay",
		histogramBuckets: latencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.pipelineRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "pipeline_runs_total",
		Help:        "Update pipeline runs by outcome (success, fetch_error, commit_error)",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.pipelineDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "pipeline_duration_milliseconds",
		Help:        "End-to-end duration of an update pipeline run",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_latency_milliseconds",
		Help:        "Latency of the external ranking source",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.fetchErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_errors_total",
		Help:        "Fetch failures by reason (exit, timeout, canceled, unavailable)",
		ConstLabels: labels,
	}, []string{"reason"})

	m.parseSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "parse_skipped_lines_total",
		Help:        "Malformed source lines dropped by the parser",
		ConstLabels: labels,
	})

	m.rankedEntries = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "ranked_entries",
		Help:        "Number of entries committed per pipeline run",
		Buckets:     []float64{0, 1, 5, 10, 20, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})

	m.cacheRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_records",
		Help:        "Competitions with a committed record",
		ConstLabels: labels,
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_hits_total",
		Help:        "Queries answered from the cache",
		ConstLabels: labels,
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_misses_total",
		Help:        "Queries that required lazy population",
		ConstLabels: labels,
	})

	m.broadcastPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "broadcast_published_total",
		Help:        "Update events accepted for fan-out",
		ConstLabels: labels,
	})

	m.broadcastDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "broadcast_dropped_total",
		Help:        "Update events dropped by stage (queue, subscriber)",
		ConstLabels: labels,
	}, []string{"stage"})

	m.broadcastDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "broadcast_delivered_total",
		Help:        "Update events handed to a subscriber",
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "broadcast_queue_size",
		Help:        "Events waiting for fan-out",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "broadcast_queue_capacity",
		Help:        "Maximum events waiting for fan-out",
		ConstLabels: labels,
	})

	m.subscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "subscribers",
		Help:        "Currently attached subscribers",
		ConstLabels: labels,
	})

	m.scheduledRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scheduled_runs_total",
		Help:        "Scheduler-triggered updates by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_errors_total",
		Help:        "HTTP errors by endpoint, method and type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Current heap allocation in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutines",
		Help:        "Current number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "gc_pause_milliseconds",
		Help:        "Average GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// Enabled reports whether recording is active for this manager.
func (m *Manager) Enabled() bool { return m.enabled }

// Pipeline Metrics Functions.

// RecordPipelineRun counts a pipeline run with its outcome.
func RecordPipelineRun(outcome string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.pipelineRuns.WithLabelValues(outcome).Inc()
	globalManager.pipelineDuration.Observe(durationMs)
}

// RecordFetchLatency records how long the ranking source took to answer.
func RecordFetchLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordFetchError counts a fetch failure by reason.
func RecordFetchError(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchErrors.WithLabelValues(reason).Inc()
}

// RecordParseSkipped adds n dropped lines.
func RecordParseSkipped(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.parseSkipped.Add(float64(n))
}

// RecordRankedEntries observes the size of a committed record.
func RecordRankedEntries(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.rankedEntries.Observe(float64(n))
}

// Cache Metrics Functions.

// UpdateCacheRecords sets the number of cached competitions.
func UpdateCacheRecords(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheRecords.Set(float64(count))
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheMisses.Inc()
}

// Broadcast Metrics Functions.

// RecordBroadcastPublished increments the accepted events counter.
func RecordBroadcastPublished() {
	if !globalManager.enabled {
		return
	}
	globalManager.broadcastPublished.Inc()
}

// RecordBroadcastDropped counts an event dropped at the given stage.
func RecordBroadcastDropped(stage string) {
	if !globalManager.enabled {
		return
	}
	globalManager.broadcastDropped.WithLabelValues(stage).Inc()
}

// RecordBroadcastDelivered counts an event handed to one subscriber.
func RecordBroadcastDelivered() {
	if !globalManager.enabled {
		return
	}
	globalManager.broadcastDelivered.Inc()
}

// UpdateQueueSize sets the current broadcast queue depth.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum broadcast queue depth.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateSubscribers sets the number of attached subscribers.
func UpdateSubscribers(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.subscribers.Set(float64(count))
}

// RecordScheduledRun counts a scheduler-triggered update.
func RecordScheduledRun(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.scheduledRuns.WithLabelValues(outcome).Inc()
}

// HTTP Metrics Functions.

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

// System Performance Metrics Functions.

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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval returns how often periodic gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}
