package requestqueue

import "time"

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// Useful for tests and for running the queue without metrics collection.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// SetDepth is a no-op implementation.
func (m *NoOpMetrics) SetDepth(operation string, depth int) {}

// RecordWait is a no-op implementation.
func (m *NoOpMetrics) RecordWait(operation string, wait time.Duration) {}

// RecordRetry is a no-op implementation.
func (m *NoOpMetrics) RecordRetry(operation string) {}

// RecordWindowExhausted is a no-op implementation.
func (m *NoOpMetrics) RecordWindowExhausted(operation string) {}

// RecordOutcome is a no-op implementation.
func (m *NoOpMetrics) RecordOutcome(operation, outcome string) {}
