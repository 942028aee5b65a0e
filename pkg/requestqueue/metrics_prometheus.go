package requestqueue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// All metrics use a custom registry for better testability and isolation;
// expose it alongside the application registry via prometheus.Gatherers.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// depth tracks pending requests per operation.
	depth *prometheus.GaugeVec

	// waitDuration tracks time from enqueue to execution start.
	waitDuration *prometheus.HistogramVec

	// retriesTotal counts backoff re-schedules per operation.
	retriesTotal *prometheus.CounterVec

	// windowExhaustedTotal counts scheduler pauses on an exhausted window.
	windowExhaustedTotal *prometheus.CounterVec

	// outcomesTotal counts requests leaving the queue by outcome
	// (resolved, rejected, cleared).
	outcomesTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance with a custom
// registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	depth := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "request_queue_depth",
			Help: "Number of requests waiting in the queue",
		},
		[]string{"operation"},
	)

	waitDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_queue_wait_seconds",
			Help:    "Time a request spent waiting in the queue",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_queue_retries_total",
			Help: "Total number of queued request retries",
		},
		[]string{"operation"},
	)

	windowExhaustedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_queue_window_exhausted_total",
			Help: "Total number of scheduler pauses on an exhausted rate limit window",
		},
		[]string{"operation"},
	)

	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_queue_outcomes_total",
			Help: "Total number of requests leaving the queue by outcome",
		},
		[]string{"operation", "outcome"},
	)

	registry.MustRegister(
		depth,
		waitDuration,
		retriesTotal,
		windowExhaustedTotal,
		outcomesTotal,
	)

	return &PrometheusMetrics{
		registry:             registry,
		depth:                depth,
		waitDuration:         waitDuration,
		retriesTotal:         retriesTotal,
		windowExhaustedTotal: windowExhaustedTotal,
		outcomesTotal:        outcomesTotal,
	}
}

// Registry returns the Prometheus registry containing all queue metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetDepth records the number of requests currently queued for the operation.
func (m *PrometheusMetrics) SetDepth(operation string, depth int) {
	m.depth.WithLabelValues(operation).Set(float64(depth))
}

// RecordWait records how long a request waited before execution started.
func (m *PrometheusMetrics) RecordWait(operation string, wait time.Duration) {
	m.waitDuration.WithLabelValues(operation).Observe(wait.Seconds())
}

// RecordRetry records a backoff re-schedule of a failed request.
func (m *PrometheusMetrics) RecordRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

// RecordWindowExhausted records a scheduler pause on an exhausted window.
func (m *PrometheusMetrics) RecordWindowExhausted(operation string) {
	m.windowExhaustedTotal.WithLabelValues(operation).Inc()
}

// RecordOutcome records a request leaving the queue.
func (m *PrometheusMetrics) RecordOutcome(operation, outcome string) {
	m.outcomesTotal.WithLabelValues(operation, outcome).Inc()
}
