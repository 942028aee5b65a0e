// Package requestqueue provides a priority request queue with per-operation
// rate limiting and centralized retry/backoff.
//
// Callers submit work with Enqueue and await a Future; a single scheduler
// goroutine drains requests in (priority desc, enqueue time asc) order,
// enforcing a fixed request budget per operation over a time window and
// re-scheduling retryable failures with exponential backoff and jitter.
// Centralizing the retry policy here keeps call sites free of ad hoc
// backoff loops.
//
// The package is framework-agnostic: storage backends, metrics collectors,
// and error classification are pluggable.
package requestqueue

import (
	"context"
	"time"
)

// Window tracks request-budget consumption for one operation.
//
// Count is the number of requests already served in the current window;
// the window resets (Count back to 0) exactly when now >= WindowResetAt.
type Window struct {
	// OperationName identifies the rate-limited operation,
	// e.g. "syndication:post".
	OperationName string `json:"operation_name"`

	// Count is the number of requests served in the current window.
	Count int `json:"count"`

	// WindowResetAt is when the current window expires.
	WindowResetAt time.Time `json:"window_reset_at"`
}

// Expired reports whether the window has passed its reset time.
func (w Window) Expired(now time.Time) bool {
	return !now.Before(w.WindowResetAt)
}

// WindowStore persists rate-limit windows per operation.
//
// Implementations can be in-memory or backed by a shared store. When the
// backing store is shared across processes, window updates are
// read-modify-write and not atomic; concurrent processes can race on Count.
// All methods must be safe for concurrent use.
type WindowStore interface {
	// Get returns the window for the operation, reporting whether one exists.
	Get(ctx context.Context, operation string) (Window, bool, error)

	// Put stores the window for its operation, replacing any existing one.
	Put(ctx context.Context, w Window) error

	// Delete removes the operation's window.
	Delete(ctx context.Context, operation string) error

	// Cleanup removes windows that expired before now and returns how many
	// were dropped.
	Cleanup(ctx context.Context, now time.Time) (int, error)
}

// Metrics defines the interface for recording queue metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type Metrics interface {
	// SetDepth records the number of requests currently queued for the
	// operation.
	SetDepth(operation string, depth int)

	// RecordWait records how long a request waited between enqueue and
	// execution start.
	RecordWait(operation string, wait time.Duration)

	// RecordRetry records a backoff re-schedule of a failed request.
	RecordRetry(operation string)

	// RecordWindowExhausted records a scheduler pause caused by an
	// exhausted rate-limit window.
	RecordWindowExhausted(operation string)

	// RecordOutcome records a request leaving the queue.
	// outcome is one of "resolved", "rejected", or "cleared".
	RecordOutcome(operation, outcome string)
}

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
