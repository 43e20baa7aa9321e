// Package metrics provides Prometheus metrics for the runboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every runboard collector.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Runs and lifecycle
	runSubmissions *prometheus.CounterVec
	transitions    *prometheus.CounterVec

	// Ranking and aggregation
	recomputes        *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	groupReranks      *prometheus.CounterVec
	batchWrites       *prometheus.CounterVec
	lockWait          prometheus.Histogram
	lockErrors        prometheus.Counter

	// Sweep
	sweepDone  *prometheus.GaugeVec
	sweepTotal *prometheus.GaugeVec
	sweepItems *prometheus.CounterVec

	// Store gauges
	playersTotal prometheus.Gauge
	runsTotal    prometheus.Gauge

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram
	pendingDuplicates      prometheus.Counter
	pendingSize            prometheus.Gauge

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "runboard",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat collector list
	auto := promauto.With(m.registry)
	latencyMs := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	m.runSubmissions = auto.NewCounterVec(
		m.counterOpts("run_submissions_total", "Run submissions by outcome"),
		[]string{"status"},
	)
	m.transitions = auto.NewCounterVec(
		m.counterOpts("transitions_total", "Verification, claim and obsolete transitions"),
		[]string{"transition", "status"},
	)

	m.recomputes = auto.NewCounterVec(
		m.counterOpts("recomputes_total", "Player total recomputations by outcome"),
		[]string{"status"},
	)
	m.recomputeDuration = auto.NewHistogram(
		m.histogramOpts("recompute_duration_seconds", "Duration of a player recomputation", m.histogramBuckets),
	)
	m.groupReranks = auto.NewCounterVec(
		m.counterOpts("group_reranks_total", "Leaderboard group re-rankings by outcome"),
		[]string{"status"},
	)
	m.batchWrites = auto.NewCounterVec(
		m.counterOpts("batch_writes_total", "Runs written by batch persistence"),
		[]string{"result"},
	)
	m.lockWait = auto.NewHistogram(
		m.histogramOpts("lock_wait_milliseconds", "Time spent acquiring a per-player lock", latencyMs),
	)
	m.lockErrors = auto.NewCounter(
		m.counterOpts("lock_errors_total", "Failed per-player lock acquisitions"),
	)

	m.sweepDone = auto.NewGaugeVec(
		m.gaugeOpts("sweep_done", "Items processed by the running sweep"),
		[]string{"phase"},
	)
	m.sweepTotal = auto.NewGaugeVec(
		m.gaugeOpts("sweep_total", "Items scheduled for the running sweep"),
		[]string{"phase"},
	)
	m.sweepItems = auto.NewCounterVec(
		m.counterOpts("sweep_items_total", "Sweep items by phase and outcome"),
		[]string{"phase", "status"},
	)

	m.playersTotal = auto.NewGauge(m.gaugeOpts("players", "Registered players"))
	m.runsTotal = auto.NewGauge(m.gaugeOpts("runs", "Stored runs"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending recompute requests"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Recompute queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Recompute requests enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Recompute requests dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Rejected recompute requests"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogramOpts("queue_processing_latency_milliseconds", "Time from enqueue to processing", latencyMs),
	)
	m.pendingDuplicates = auto.NewCounter(
		m.counterOpts("pending_duplicates_total", "Recompute requests coalesced into a pending one"),
	)
	m.pendingSize = auto.NewGauge(m.gaugeOpts("pending_players", "Players with a pending recompute"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("workers", "Configured recompute workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("workers_active", "Workers currently recomputing"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Worker time per request", latencyMs),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Failed worker requests"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_seconds", "HTTP request duration", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and kind"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordRunSubmission counts a submission with status accepted, rejected or failed.
func RecordRunSubmission(status string) {
	globalManager.runSubmissions.WithLabelValues(status).Inc()
}

// RecordTransition counts a lifecycle transition.
func RecordTransition(transition, status string) {
	globalManager.transitions.WithLabelValues(transition, status).Inc()
}

// RecordRecompute counts a player recomputation and observes its duration.
func RecordRecompute(status string, d time.Duration) {
	globalManager.recomputes.WithLabelValues(status).Inc()
	globalManager.recomputeDuration.Observe(d.Seconds())
}

// RecordGroupRerank counts a group re-ranking.
func RecordGroupRerank(status string) {
	globalManager.groupReranks.WithLabelValues(status).Inc()
}

// RecordBatchWrite adds the outcome of a chunked write.
func RecordBatchWrite(updated, failed int) {
	if updated > 0 {
		globalManager.batchWrites.WithLabelValues("updated").Add(float64(updated))
	}
	if failed > 0 {
		globalManager.batchWrites.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordLockWait observes lock acquisition latency.
func RecordLockWait(d time.Duration) {
	globalManager.lockWait.Observe(float64(d.Milliseconds()))
}

// RecordLockError counts a failed lock acquisition.
func RecordLockError() {
	globalManager.lockErrors.Inc()
}

// UpdateSweepProgress sets the progress gauges of a sweep phase.
func UpdateSweepProgress(phase string, done, total int) {
	globalManager.sweepDone.WithLabelValues(phase).Set(float64(done))
	globalManager.sweepTotal.WithLabelValues(phase).Set(float64(total))
}

// RecordSweepItem counts a processed sweep item.
func RecordSweepItem(phase, status string) {
	globalManager.sweepItems.WithLabelValues(phase, status).Inc()
}

// UpdatePlayersTotal sets the registered player count.
func UpdatePlayersTotal(count int) {
	globalManager.playersTotal.Set(float64(count))
}

// UpdateRunsTotal sets the stored run count.
func UpdateRunsTotal(count int) {
	globalManager.runsTotal.Set(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// RecordPendingDuplicate counts a coalesced recompute request.
func RecordPendingDuplicate() {
	globalManager.pendingDuplicates.Inc()
}

// UpdatePendingSize sets the number of players awaiting a recompute.
func UpdatePendingSize(size int) {
	globalManager.pendingSize.Set(float64(size))
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry the global collectors live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
