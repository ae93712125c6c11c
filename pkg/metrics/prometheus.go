// Package metrics provides Prometheus metrics for the handoff queue and its roles.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by recorders and callers.
const (
	SideProducer = "producer"
	SideConsumer = "consumer"

	WakeSignal    = "signal"
	WakeBroadcast = "broadcast"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Queue Metrics - depth, throughput and blocking behaviour
	queueDepth    *prometheus.GaugeVec
	queueCapacity *prometheus.GaugeVec
	queueEnqueued *prometheus.CounterVec
	queueDequeued *prometheus.CounterVec
	queueRejected *prometheus.CounterVec
	queueWaiters  *prometheus.GaugeVec
	queueWait     *prometheus.HistogramVec
	queueWakeups  *prometheus.CounterVec
	queueClosures *prometheus.CounterVec

	// Role Metrics - producers and consumers
	itemsProduced *prometheus.CounterVec
	itemsConsumed *prometheus.CounterVec
	roleErrors    *prometheus.CounterVec

	// Run Metrics - harness executions
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram

	// HTTP Metrics - ops endpoints
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// httpDurationBucketsMs are upper bounds for HTTP request durations, in milliseconds.
var httpDurationBucketsMs = []float64{.1, .5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // constant bucket layout

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "handoff",
		subsystem:        "",
		histogramBuckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus collectors.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector definition
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.queueDepth = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_depth",
		Help: "Number of items currently buffered in the queue",
	}, []string{"queue"})

	m.queueCapacity = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_capacity",
		Help: "Fixed capacity of the queue",
	}, []string{"queue"})

	m.queueEnqueued = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_enqueued_total",
		Help: "Total number of items accepted by the queue",
	}, []string{"queue"})

	m.queueDequeued = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_dequeued_total",
		Help: "Total number of items handed to consumers",
	}, []string{"queue"})

	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_rejected_total",
		Help: "Operations that returned without moving an item, by reason",
	}, []string{"queue", "reason"})

	m.queueWaiters = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_waiters",
		Help: "Goroutines currently blocked on the queue, by side",
	}, []string{"queue", "side"})

	m.queueWait = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "queue_wait_seconds",
		Help:    "Time spent blocked before an enqueue or dequeue completed",
		Buckets: m.histogramBuckets,
	}, []string{"queue", "side"})

	m.queueWakeups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_producer_wakeups_total",
		Help: "Producer wakeups issued by dequeue, by kind (signal or broadcast)",
	}, []string{"queue", "kind"})

	m.queueClosures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "queue_closed_total",
		Help: "Number of queues closed",
	}, []string{"queue"})

	m.itemsProduced = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "items_produced_total",
		Help: "Items successfully enqueued, by producer",
	}, []string{"producer"})

	m.itemsConsumed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "items_consumed_total",
		Help: "Items dequeued and accepted by the sink, by consumer",
	}, []string{"consumer"})

	m.roleErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "role_errors_total",
		Help: "Errors that terminated a producer or consumer loop",
	}, []string{"role", "reason"})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "runs_total",
		Help: "Harness runs by result",
	}, []string{"result"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "run_duration_seconds",
		Help:    "Wall time of harness runs",
		Buckets: prometheus.DefBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: httpDurationBucketsMs,
	}, []string{"endpoint", "method", "status_code"})
}

// Enabled reports whether recorders on m have any effect. A nil Manager is
// valid and records nothing.
func (m *Manager) Enabled() bool { return m.on() }

func (m *Manager) on() bool { return m != nil && m.enabled }

// Queue Metrics.

// SetQueueCapacity sets the capacity gauge for a queue.
func (m *Manager) SetQueueCapacity(queue string, capacity int) {
	if !m.on() {
		return
	}
	m.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}

// SetQueueDepth sets the depth gauge for a queue.
func (m *Manager) SetQueueDepth(queue string, depth int) {
	if !m.on() {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordEnqueue counts an accepted item.
func (m *Manager) RecordEnqueue(queue string) {
	if !m.on() {
		return
	}
	m.queueEnqueued.WithLabelValues(queue).Inc()
}

// RecordDequeue counts an item handed to a consumer.
func (m *Manager) RecordDequeue(queue string) {
	if !m.on() {
		return
	}
	m.queueDequeued.WithLabelValues(queue).Inc()
}

// RecordRejected counts an operation that moved no item.
func (m *Manager) RecordRejected(queue, reason string) {
	if !m.on() {
		return
	}
	m.queueRejected.WithLabelValues(queue, reason).Inc()
}

// AddWaiters adjusts the blocked-goroutine gauge for one side of a queue.
func (m *Manager) AddWaiters(queue, side string, delta int) {
	if !m.on() {
		return
	}
	m.queueWaiters.WithLabelValues(queue, side).Add(float64(delta))
}

// ObserveWait records how long a caller was blocked.
func (m *Manager) ObserveWait(queue, side string, seconds float64) {
	if !m.on() {
		return
	}
	m.queueWait.WithLabelValues(queue, side).Observe(seconds)
}

// RecordWakeup counts a producer wakeup of the given kind.
func (m *Manager) RecordWakeup(queue, kind string) {
	if !m.on() {
		return
	}
	m.queueWakeups.WithLabelValues(queue, kind).Inc()
}

// RecordClose counts a queue transitioning to closed.
func (m *Manager) RecordClose(queue string) {
	if !m.on() {
		return
	}
	m.queueClosures.WithLabelValues(queue).Inc()
}

// Role Metrics.

// RecordProduced counts an item enqueued by a producer.
func (m *Manager) RecordProduced(producer string) {
	if !m.on() {
		return
	}
	m.itemsProduced.WithLabelValues(producer).Inc()
}

// RecordConsumed counts an item accepted by a consumer's sink.
func (m *Manager) RecordConsumed(consumer string) {
	if !m.on() {
		return
	}
	m.itemsConsumed.WithLabelValues(consumer).Inc()
}

// RecordRoleError counts a terminal error in a producer or consumer loop.
func (m *Manager) RecordRoleError(role, reason string) {
	if !m.on() {
		return
	}
	m.roleErrors.WithLabelValues(role, reason).Inc()
}

// Run Metrics.

// RecordRun counts a finished harness run and its wall time.
func (m *Manager) RecordRun(result string, seconds float64) {
	if !m.on() {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(seconds)
}

// HTTP Metrics.

// RecordHTTPRequest counts an HTTP request and its duration in milliseconds.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.on() {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Global returns the process-wide manager backed by GetRegistry.
func Global() *Manager {
	return globalManager
}

// RecordHTTPRequest records an HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
