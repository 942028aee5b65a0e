// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Cache metrics track the resilient cache store
var (
	// CacheOperationsTotal counts cache operations by op and result
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache store operations",
		},
		[]string{"operation", "result"},
	)

	// CacheCorruptionsTotal counts corrupted entries detected and deleted on read
	CacheCorruptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_corruptions_total",
			Help: "Total number of corrupted cache entries detected and deleted",
		},
		[]string{"sentinel"},
	)

	// CacheDegraded reports whether the store is serving from the in-process fallback map
	CacheDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_degraded",
			Help: "Whether the cache store is in degraded mode (1=degraded, 0=healthy)",
		},
	)

	// CacheFallbackEntries tracks the fallback map fill level
	CacheFallbackEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_fallback_entries",
			Help: "Number of entries currently held in the in-process fallback map",
		},
	)
)

// Breaker metrics track per-resource circuit breaker behavior
var (
	// BreakerState reports the current state per breaker (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// BreakerTransitionsTotal counts state transitions per breaker
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// BreakerShortCircuitsTotal counts calls denied without reaching the resource
	BreakerShortCircuitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_short_circuits_total",
			Help: "Total number of calls short-circuited by an open breaker",
		},
		[]string{"name"},
	)
)

// Queue metrics track the rate-limited request queue
var (
	// QueueDepth reports the number of queued requests per operation
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "request_queue_depth",
			Help: "Number of requests waiting in the queue",
		},
		[]string{"operation"},
	)

	// QueueWaitDuration measures time from enqueue to execution start
	QueueWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_queue_wait_seconds",
			Help:    "Time a request spent waiting in the queue",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"operation"},
	)

	// QueueRetriesTotal counts retry attempts per operation
	QueueRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_queue_retries_total",
			Help: "Total number of queued request retries",
		},
		[]string{"operation"},
	)

	// QueueWindowExhaustedTotal counts scheduler pauses caused by an exhausted window
	QueueWindowExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_queue_window_exhausted_total",
			Help: "Total number of times the rate limit window was exhausted",
		},
		[]string{"operation"},
	)

	// QueueOutcomesTotal counts requests leaving the queue by outcome
	QueueOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_queue_outcomes_total",
			Help: "Total number of requests leaving the queue by outcome (resolved, rejected, cleared)",
		},
		[]string{"operation", "outcome"},
	)
)

// Source metrics track upstream acquisition attempts
var (
	// SourceAttemptsTotal counts acquisition attempts per source and result
	SourceAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_attempts_total",
			Help: "Total number of upstream source attempts",
		},
		[]string{"source", "verb", "result"},
	)

	// SourceAttemptDuration measures upstream call latency per source
	SourceAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_attempt_duration_seconds",
			Help:    "Upstream source call duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
		[]string{"source"},
	)

	// SourceDemotionsTotal counts cooldown demotions per source
	SourceDemotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_demotions_total",
			Help: "Total number of rate-limit cooldown demotions",
		},
		[]string{"source"},
	)

	// FetchesTotal counts orchestrated fetches by entity and outcome
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetches_total",
			Help: "Total number of orchestrated fetches",
		},
		[]string{"entity", "outcome"},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}
