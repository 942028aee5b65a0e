// Package alert delivers ops alerts about resilience state transitions
// (circuit breaker opened or closed, cache degraded or restored, source
// demoted) to webhook channels. Delivery is best-effort: failures are
// logged, never propagated to the code path that raised the event.
//
// The package includes Slack and Discord webhook implementations and a
// no-op alerter for when alerting is disabled.
package alert

import (
	"context"
	"time"
)

// EventKind identifies the state transition an alert describes.
type EventKind string

const (
	KindBreakerOpened EventKind = "breaker_opened"
	KindBreakerClosed EventKind = "breaker_closed"
	KindCacheDegraded EventKind = "cache_degraded"
	KindCacheRestored EventKind = "cache_restored"
	KindSourceDemoted EventKind = "source_demoted"
)

// Event is one resilience state transition.
type Event struct {
	// Kind is the transition type.
	Kind EventKind

	// Resource names the affected resource: a source name for breaker and
	// demotion events, "cache" for cache events.
	Resource string

	// Detail is an optional human-readable elaboration, e.g. the cooldown
	// deadline for a demotion.
	Detail string

	// At is when the transition happened.
	At time.Time
}

// recovery reports whether the event signals a return to normal operation.
// Recoveries render green, everything else red.
func (e Event) recovery() bool {
	return e.Kind == KindBreakerClosed || e.Kind == KindCacheRestored
}

// title renders the event headline used by all channels.
func (e Event) title() string {
	switch e.Kind {
	case KindBreakerOpened:
		return "Circuit opened: " + e.Resource
	case KindBreakerClosed:
		return "Circuit closed: " + e.Resource
	case KindCacheDegraded:
		return "Cache degraded: serving from fallback"
	case KindCacheRestored:
		return "Cache restored: backend reachable again"
	case KindSourceDemoted:
		return "Source demoted: " + e.Resource
	default:
		return string(e.Kind) + ": " + e.Resource
	}
}

// Alerter sends ops alerts. Implementations handle rate limiting and
// retries internally.
type Alerter interface {
	// Notify delivers one event. A non-nil error means the alert was
	// dropped after all retry attempts.
	Notify(ctx context.Context, event Event) error
}
