package metrics

import "time"

// RecordCacheOperation records a cache store operation outcome.
//
// operation is one of "get", "set", "delete"; result is one of
// "hit", "miss", "ok", "error".
func RecordCacheOperation(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordCacheCorruption records a corrupted entry detected on read.
// sentinel names the corruption shape that matched.
func RecordCacheCorruption(sentinel string) {
	CacheCorruptionsTotal.WithLabelValues(sentinel).Inc()
}

// SetCacheDegraded updates the degraded-mode gauge.
func SetCacheDegraded(degraded bool) {
	if degraded {
		CacheDegraded.Set(1)
	} else {
		CacheDegraded.Set(0)
	}
}

// SetCacheFallbackEntries updates the fallback map fill gauge.
func SetCacheFallbackEntries(n int) {
	CacheFallbackEntries.Set(float64(n))
}

// RecordBreakerTransition records a circuit breaker state change and
// updates the state gauge to the new state.
func RecordBreakerTransition(name, from, to string, stateValue float64) {
	BreakerTransitionsTotal.WithLabelValues(name, from, to).Inc()
	BreakerState.WithLabelValues(name).Set(stateValue)
}

// RecordBreakerShortCircuit records a call denied by an open breaker.
func RecordBreakerShortCircuit(name string) {
	BreakerShortCircuitsTotal.WithLabelValues(name).Inc()
}

// SetQueueDepth updates the queue depth gauge for an operation.
func SetQueueDepth(operation string, depth int) {
	QueueDepth.WithLabelValues(operation).Set(float64(depth))
}

// RecordQueueWait records how long a request waited before executing.
func RecordQueueWait(operation string, wait time.Duration) {
	QueueWaitDuration.WithLabelValues(operation).Observe(wait.Seconds())
}

// RecordQueueRetry records a retry of a queued request.
func RecordQueueRetry(operation string) {
	QueueRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordQueueWindowExhausted records a scheduler pause caused by an
// exhausted rate limit window.
func RecordQueueWindowExhausted(operation string) {
	QueueWindowExhaustedTotal.WithLabelValues(operation).Inc()
}

// RecordQueueOutcome records a request leaving the queue.
// outcome is one of "resolved", "rejected", "cleared".
func RecordQueueOutcome(operation, outcome string) {
	QueueOutcomesTotal.WithLabelValues(operation, outcome).Inc()
}

// QueueMetrics adapts the application registry onto the request queue's
// pluggable Metrics interface.
type QueueMetrics struct{}

// SetDepth updates the queue depth gauge for an operation.
func (QueueMetrics) SetDepth(operation string, depth int) { SetQueueDepth(operation, depth) }

// RecordWait records how long a request waited before executing.
func (QueueMetrics) RecordWait(operation string, wait time.Duration) {
	RecordQueueWait(operation, wait)
}

// RecordRetry records a retry of a queued request.
func (QueueMetrics) RecordRetry(operation string) { RecordQueueRetry(operation) }

// RecordWindowExhausted records a scheduler pause on an exhausted window.
func (QueueMetrics) RecordWindowExhausted(operation string) {
	RecordQueueWindowExhausted(operation)
}

// RecordOutcome records a request leaving the queue.
func (QueueMetrics) RecordOutcome(operation, outcome string) {
	RecordQueueOutcome(operation, outcome)
}

// RecordSourceAttempt records an upstream source attempt.
//
// verb is the acquisition verb ("post", "engagement", "user", "batch");
// result is "success" or "failure".
func RecordSourceAttempt(source, verb, result string, duration time.Duration) {
	SourceAttemptsTotal.WithLabelValues(source, verb, result).Inc()
	SourceAttemptDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceDemotion records a rate-limit cooldown demotion.
func RecordSourceDemotion(source string) {
	SourceDemotionsTotal.WithLabelValues(source).Inc()
}

// RecordFetch records an orchestrated fetch outcome.
//
// entity is "post", "engagement", or "user"; outcome is "cache",
// "source", or "exhausted".
func RecordFetch(entity, outcome string) {
	FetchesTotal.WithLabelValues(entity, outcome).Inc()
}
