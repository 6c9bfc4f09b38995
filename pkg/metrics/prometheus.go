// Package metrics provides Prometheus metrics for the tally derived-data service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tally service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Statistics engine metrics
	statsRecalcTotal    *prometheus.CounterVec
	statsRecalcDuration prometheus.Histogram
	statsDirtyMarks     prometheus.Counter
	statsAnomalyRepairs prometheus.Counter
	statsRecordsCreated prometheus.Counter

	// Sweep metrics
	sweepRuns     prometheus.Counter
	sweepRepaired prometheus.Counter
	sweepDuration prometheus.Histogram

	// Ranking metrics
	scoresSubmitted       *prometheus.CounterVec
	overtakeNotifications prometheus.Counter

	// Notification pipeline metrics
	notifyQueueSize       prometheus.Gauge
	notifyDispatched      prometheus.Counter
	notifyDispatchErrors  prometheus.Counter
	notifyEnqueueFailures prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "tally",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.statsRecalcTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stats_recalculations_total",
			Help:      "Total number of exact statistics recomputations by subject kind",
		},
		[]string{"kind"},
	)

	m.statsRecalcDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stats_recalculation_duration_milliseconds",
		Help:      "Duration of a single exact recomputation in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.statsDirtyMarks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stats_dirty_marks_total",
		Help:      "Total number of statistics records marked dirty",
	})

	m.statsAnomalyRepairs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stats_anomaly_repairs_total",
		Help:      "Total number of orphaned statistics records relinked to their subject",
	})

	m.statsRecordsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stats_records_created_total",
		Help:      "Total number of statistics records created lazily",
	})

	m.sweepRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_runs_total",
		Help:      "Total number of statistics sweep passes",
	})

	m.sweepRepaired = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_recalculated_total",
		Help:      "Total number of statistics records recalculated by the sweeper",
	})

	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_duration_milliseconds",
		Help:      "Duration of a full sweep pass in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.scoresSubmitted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "scores_submitted_total",
			Help:      "Total number of scores submitted by board kind",
		},
		[]string{"board"},
	)

	m.overtakeNotifications = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "overtake_notifications_total",
		Help:      "Total number of rank-overtaken notifications emitted",
	})

	m.notifyQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_queue_size",
		Help:      "Current depth of the notification queue",
	})

	m.notifyDispatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_dispatched_total",
		Help:      "Total number of notifications delivered to the sink",
	})

	m.notifyDispatchErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_dispatch_errors_total",
		Help:      "Total number of sink delivery failures",
	})

	m.notifyEnqueueFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_enqueue_failures_total",
		Help:      "Total number of notifications dropped due to queue backpressure",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordRecalculation increments the recomputation counter for a subject kind.
func RecordRecalculation(kind string) {
	globalManager.statsRecalcTotal.WithLabelValues(kind).Inc()
}

// RecordRecalculationDuration records the duration of an exact recomputation.
func RecordRecalculationDuration(ms float64) {
	globalManager.statsRecalcDuration.Observe(ms)
}

// RecordDirtyMark increments the dirty-mark counter.
func RecordDirtyMark() {
	globalManager.statsDirtyMarks.Inc()
}

// RecordAnomalyRepair increments the orphan-relink counter.
func RecordAnomalyRepair() {
	globalManager.statsAnomalyRepairs.Inc()
}

// RecordStatsCreated increments the lazy record creation counter.
func RecordStatsCreated() {
	globalManager.statsRecordsCreated.Inc()
}

// RecordSweepRun increments the sweep pass counter.
func RecordSweepRun() {
	globalManager.sweepRuns.Inc()
}

// RecordSweepRecalculated adds to the sweeper recalculation counter.
func RecordSweepRecalculated(n int) {
	globalManager.sweepRepaired.Add(float64(n))
}

// RecordSweepDuration records the duration of a sweep pass.
func RecordSweepDuration(ms float64) {
	globalManager.sweepDuration.Observe(ms)
}

// RecordScoreSubmitted increments the score submission counter for a board.
func RecordScoreSubmitted(board string) {
	globalManager.scoresSubmitted.WithLabelValues(board).Inc()
}

// RecordOvertakeNotification increments the overtaken-notification counter.
func RecordOvertakeNotification() {
	globalManager.overtakeNotifications.Inc()
}

// UpdateNotifyQueueSize sets the current notification queue depth.
func UpdateNotifyQueueSize(size int) {
	globalManager.notifyQueueSize.Set(float64(size))
}

// RecordNotifyDispatched increments the delivered-notification counter.
func RecordNotifyDispatched() {
	globalManager.notifyDispatched.Inc()
}

// RecordNotifyDispatchError increments the sink failure counter.
func RecordNotifyDispatchError() {
	globalManager.notifyDispatchErrors.Inc()
}

// RecordNotifyEnqueueFailure increments the backpressure drop counter.
func RecordNotifyEnqueueFailure() {
	globalManager.notifyEnqueueFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
