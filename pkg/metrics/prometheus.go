// Package metrics provides Prometheus metrics for the team balancing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcome label values.
const (
	OutcomeFeasible   = "feasible"
	OutcomeInfeasible = "infeasible"
	OutcomeIncomplete = "incomplete"
	OutcomeError      = "error"
)

// Manager manages all Prometheus metrics for the balancing service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core Balancing Metrics
	searches         *prometheus.CounterVec
	searchLatency    prometheus.Histogram
	searchVisited    prometheus.Counter
	searchPruned     *prometheus.CounterVec
	searchPartitions prometheus.Counter
	ratingGap        *prometheus.GaugeVec
	balanceChanges   prometheus.Counter

	// Result Cache Metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheSize   prometheus.Gauge

	// Ratings Metrics
	ratingLatency prometheus.Histogram
	ratingErrors  prometheus.Counter
	ratingChanges prometheus.Counter

	// Operational Health Metrics
	guildsTotal      prometheus.Gauge
	competitorsTotal prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository Metrics
	repositoryLoadLatency prometheus.Histogram
	repositorySaveLatency prometheus.Histogram

	// Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry *prometheus.Registry //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry, which GetRegistry then returns. Call it at startup, before
// anything records metrics or serves the registry.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	all := append(append([]Option{}, opts...), WithPrometheusRegistry(registry))
	globalManager = NewManager(all...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "teambalance",
		subsystem:        "balancer",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

func (m *Manager) name(name string) string {
	if m.metricPrefix == "" {
		return name
	}
	return m.metricPrefix + "_" + name
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Balancing Metrics
	m.searches = auto.NewCounterVec(
		m.counter("searches_total", "Total number of balance searches by outcome"),
		[]string{"outcome"},
	)
	m.searchLatency = auto.NewHistogram(
		m.histogram("search_latency_milliseconds", "Histogram of balance search latency in milliseconds",
			[]float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000, 30000}),
	)
	m.searchVisited = auto.NewCounter(
		m.counter("search_candidates_visited_total", "Total number of candidate teams considered by searches"),
	)
	m.searchPruned = auto.NewCounterVec(
		m.counter("search_candidates_pruned_total", "Total number of candidates abandoned by reason"),
		[]string{"reason"},
	)
	m.searchPartitions = auto.NewCounter(
		m.counter("search_partitions_evaluated_total", "Total number of complete partitions evaluated"),
	)
	m.ratingGap = auto.NewGaugeVec(
		m.gauge("rating_gap", "Latest rating gap per guild"),
		[]string{"guild"},
	)
	m.balanceChanges = auto.NewCounter(
		m.counter("balance_changes_total", "Total number of times a guild's optimal split changed"),
	)

	// Result Cache Metrics
	m.cacheHits = auto.NewCounter(m.counter("result_cache_hits_total", "Total number of result cache hits"))
	m.cacheMisses = auto.NewCounter(m.counter("result_cache_misses_total", "Total number of result cache misses"))
	m.cacheSize = auto.NewGauge(m.gauge("result_cache_entries", "Current number of cached search results"))

	// Ratings Metrics
	m.ratingLatency = auto.NewHistogram(
		m.histogram("rating_lookup_latency_milliseconds", "Rating lookup latency in milliseconds", m.histogramBuckets),
	)
	m.ratingErrors = auto.NewCounter(m.counter("rating_lookup_errors_total", "Total number of failed rating lookups"))
	m.ratingChanges = auto.NewCounter(m.counter("rating_changes_total", "Total number of rating changes observed"))

	// Operational Health Metrics
	m.guildsTotal = auto.NewGauge(m.gauge("guilds_total", "Number of guilds tracked"))
	m.competitorsTotal = auto.NewGauge(m.gauge("competitors_total", "Number of competitors across all guilds"))

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	// Repository Metrics
	m.repositoryLoadLatency = auto.NewHistogram(
		m.histogram("repository_load_latency_milliseconds", "Guild load latency in milliseconds", m.histogramBuckets),
	)
	m.repositorySaveLatency = auto.NewHistogram(
		m.histogram("repository_save_latency_milliseconds", "Guild save latency in milliseconds", m.histogramBuckets),
	)

	// Queue Metrics
	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current size of the recheck queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("queue_enqueue_total", "Total number of jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counter("queue_dequeue_total", "Total number of jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Total number of enqueue errors"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogram("queue_processing_latency_milliseconds", "Time jobs spend waiting in the queue in milliseconds", m.histogramBuckets),
	)

	// Worker Metrics
	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Number of workers in the pool"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Number of busy workers"))
	m.workerIdleCount = auto.NewGauge(m.gauge("worker_idle_count", "Number of idle workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets),
	)
	m.workerErrorRate = auto.NewCounter(m.counter("worker_errors_total", "Total number of worker errors"))

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		m.counter("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counter("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogram("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Balancing Metrics Functions.

// RecordSearch records one balance search with its outcome and latency.
func RecordSearch(outcome string, latencyMs float64) {
	globalManager.searches.WithLabelValues(outcome).Inc()
	globalManager.searchLatency.Observe(latencyMs)
}

// RecordSearchWork records the work done by a completed search.
func RecordSearchWork(visited, rejected, bounded, complete int64) {
	globalManager.searchVisited.Add(float64(visited))
	globalManager.searchPruned.WithLabelValues("constraint").Add(float64(rejected))
	globalManager.searchPruned.WithLabelValues("bound").Add(float64(bounded))
	globalManager.searchPartitions.Add(float64(complete))
}

// UpdateRatingGap sets the latest gap for a guild.
func UpdateRatingGap(guild string, gap float64) {
	globalManager.ratingGap.WithLabelValues(guild).Set(gap)
}

// DeleteRatingGap removes the gap series of a guild.
func DeleteRatingGap(guild string) {
	globalManager.ratingGap.DeleteLabelValues(guild)
}

// RecordBalanceChange increments the balance changes counter.
func RecordBalanceChange() {
	globalManager.balanceChanges.Inc()
}

// Result Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheSize sets the number of cached results.
func UpdateCacheSize(size int) {
	globalManager.cacheSize.Set(float64(size))
}

// Ratings Metrics Functions.

// RecordRatingLatency records rating lookup latency in milliseconds.
func RecordRatingLatency(latencyMs float64) {
	globalManager.ratingLatency.Observe(latencyMs)
}

// RecordRatingError increments the rating lookup error counter.
func RecordRatingError() {
	globalManager.ratingErrors.Inc()
}

// RecordRatingChange increments the rating change counter.
func RecordRatingChange() {
	globalManager.ratingChanges.Inc()
}

// UpdateGuildsTotal sets the number of guilds.
func UpdateGuildsTotal(count int) {
	globalManager.guildsTotal.Set(float64(count))
}

// UpdateCompetitorsTotal sets the number of competitors across guilds.
func UpdateCompetitorsTotal(count int) {
	globalManager.competitorsTotal.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// RecordRepositoryLoadLatency records guild load latency.
func RecordRepositoryLoadLatency(latencyMs float64) {
	globalManager.repositoryLoadLatency.Observe(latencyMs)
}

// RecordRepositorySaveLatency records guild save latency.
func RecordRepositorySaveLatency(latencyMs float64) {
	globalManager.repositorySaveLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a job waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
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
