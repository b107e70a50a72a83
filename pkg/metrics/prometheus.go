// Package metrics provides Prometheus metrics for the matching engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 5 * time.Second

// Millisecond buckets. Pair scoring is sub-millisecond unless a vibe lookup
// goes over the network.
var (
	defaultLatencyBuckets   = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}
	defaultOptimizerBuckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
)

// Manager manages all Prometheus metrics for the matching service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets   []float64
	optimizerBuckets []float64
	refreshInterval  time.Duration
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scoring
	pairScoresComputed prometheus.Counter
	pairScoreLatency   prometheus.Histogram
	pairVetoes         *prometheus.CounterVec
	vibeLookups        *prometheus.CounterVec

	// Optimizer
	optimizerRuns      *prometheus.CounterVec
	optimizerDuration  prometheus.Histogram
	optimizerBestScore prometheus.Gauge
	optimizerInFlight  prometheus.Gauge
	previewsGenerated  prometheus.Counter

	// Arrangement mutations
	mutations          *prometheus.CounterVec
	constraintWarnings *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	participantsTotal  prometheus.Gauge
	groupsTotal        prometheus.Gauge

	// Repository
	repositoryLatency *prometheus.HistogramVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
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
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "match",
		subsystem:        "engine",
		latencyBuckets:   defaultLatencyBuckets,
		optimizerBuckets: defaultOptimizerBuckets,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.pairScoresComputed = auto.NewCounter(m.counterOpts("pair_scores_total", "Total number of pairwise compatibility scores computed"))
	m.pairScoreLatency = auto.NewHistogram(m.histogramOpts("pair_score_latency_milliseconds", "Pair scoring latency in milliseconds, including the vibe lookup", m.latencyBuckets))
	m.pairVetoes = auto.NewCounterVec(m.counterOpts("pair_vetoes_total", "Pair scores capped by a veto"), []string{"veto"})
	m.vibeLookups = auto.NewCounterVec(m.counterOpts("vibe_lookups_total", "Vibe lookups by source and outcome"), []string{"source", "outcome"})

	m.optimizerRuns = auto.NewCounterVec(m.counterOpts("optimizer_runs_total", "Optimizer runs by outcome"), []string{"outcome"})
	m.optimizerDuration = auto.NewHistogram(m.histogramOpts("optimizer_duration_milliseconds", "Optimizer run duration in milliseconds", m.optimizerBuckets))
	m.optimizerBestScore = auto.NewGauge(m.gaugeOpts("optimizer_best_score", "Objective value of the best arrangement from the last run"))
	m.optimizerInFlight = auto.NewGauge(m.gaugeOpts("optimizer_in_flight", "Optimizer runs currently computing"))
	m.previewsGenerated = auto.NewCounter(m.counterOpts("previews_generated_total", "Preview arrangements returned to callers"))

	m.mutations = auto.NewCounterVec(m.counterOpts("arrangement_mutations_total", "Committed arrangement mutations by operation and outcome"), []string{"operation", "outcome"})
	m.constraintWarnings = auto.NewCounterVec(m.counterOpts("constraint_warnings_total", "Constraint warnings raised on committed groups"), []string{"code", "severity"})
	m.notifications = auto.NewCounterVec(m.counterOpts("notifications_total", "Arrangement change notifications by outcome"), []string{"outcome"})
	m.participantsTotal = auto.NewGauge(m.gaugeOpts("participants_total", "Registered participants across events"))
	m.groupsTotal = auto.NewGauge(m.gaugeOpts("groups_total", "Groups in committed arrangements across events"))

	m.repositoryLatency = auto.NewHistogramVec(m.histogramOpts("repository_latency_milliseconds", "Repository operation latency in milliseconds", m.latencyBuckets), []string{"backend", "operation"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.latencyBuckets), []string{"endpoint", "method", "status_code"})

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of active pair scoring workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", m.latencyBuckets))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Total number of errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Total number of errors by type"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", m.latencyBuckets), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Scoring.

// RecordPairScore counts a computed pair score and its latency.
func RecordPairScore(latencyMs float64) {
	globalManager.pairScoresComputed.Inc()
	globalManager.pairScoreLatency.Observe(latencyMs)
}

// RecordPairVeto counts a veto cap ("dead_air" or "humor_clash").
func RecordPairVeto(veto string) {
	globalManager.pairVetoes.WithLabelValues(veto).Inc()
}

// RecordVibeLookup counts a vibe lookup by source (cache, http, static) and outcome (hit, miss, error).
func RecordVibeLookup(source, outcome string) {
	globalManager.vibeLookups.WithLabelValues(source, outcome).Inc()
}

// Optimizer.

// RecordOptimizerRun records a finished run.
func RecordOptimizerRun(outcome string, durationMs, bestScore float64) {
	globalManager.optimizerRuns.WithLabelValues(outcome).Inc()
	globalManager.optimizerDuration.Observe(durationMs)
	if outcome == "success" {
		globalManager.optimizerBestScore.Set(bestScore)
	}
}

// AddOptimizerInFlight adjusts the in-flight optimizer gauge.
func AddOptimizerInFlight(delta float64) {
	globalManager.optimizerInFlight.Add(delta)
}

// RecordPreviews counts preview arrangements returned.
func RecordPreviews(n int) {
	globalManager.previewsGenerated.Add(float64(n))
}

// Mutations.

// RecordMutation counts a finalize, commit, auto-place, renumber or attendance change.
func RecordMutation(operation, outcome string) {
	globalManager.mutations.WithLabelValues(operation, outcome).Inc()
}

// RecordConstraintWarning counts a warning on a committed group.
func RecordConstraintWarning(code, severity string) {
	globalManager.constraintWarnings.WithLabelValues(code, severity).Inc()
}

// RecordNotification counts a change notification by outcome.
func RecordNotification(outcome string) {
	globalManager.notifications.WithLabelValues(outcome).Inc()
}

// UpdateParticipantsTotal sets the registered participant count.
func UpdateParticipantsTotal(n int) {
	globalManager.participantsTotal.Set(float64(n))
}

// UpdateGroupsTotal sets the committed group count.
func UpdateGroupsTotal(n int) {
	globalManager.groupsTotal.Set(float64(n))
}

// RecordRepositoryLatency records a repository operation latency.
func RecordRepositoryLatency(backend, operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Workers.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

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

// RefreshInterval returns how often gauge updaters should run.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
