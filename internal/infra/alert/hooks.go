package alert

import (
	"context"
	"log/slog"
	"time"

	"edgepulse/internal/resilience/breaker"
)

// emitTimeout bounds each asynchronous delivery so a stuck webhook cannot
// pile up goroutines forever.
const emitTimeout = 30 * time.Second

// emit delivers the event on its own goroutine and logs failures. The hooks
// below run synchronously inside resilience primitives, so they must never
// block or propagate errors.
func emit(a Alerter, event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()

		if err := a.Notify(ctx, event); err != nil {
			slog.Error("alert dropped",
				slog.String("kind", string(event.Kind)),
				slog.String("resource", event.Resource),
				slog.Any("error", err))
		}
	}()
}

// BreakerHook adapts an Alerter into a breaker state-change hook. It alerts
// when a circuit opens and when it closes again; the half-open trial state
// is not worth a page.
func BreakerHook(a Alerter) breaker.StateChangeHook {
	return func(name string, from, to breaker.State) {
		switch {
		case to == breaker.StateOpen:
			emit(a, Event{
				Kind:     KindBreakerOpened,
				Resource: name,
				Detail:   "transition " + string(from) + " -> " + string(to),
				At:       time.Now(),
			})
		case to == breaker.StateClosed && from != breaker.StateClosed:
			emit(a, Event{
				Kind:     KindBreakerClosed,
				Resource: name,
				Detail:   "transition " + string(from) + " -> " + string(to),
				At:       time.Now(),
			})
		}
	}
}

// CacheHook adapts an Alerter into the cache store's degraded-mode hook.
func CacheHook(a Alerter) func(degraded bool) {
	return func(degraded bool) {
		kind := KindCacheRestored
		if degraded {
			kind = KindCacheDegraded
		}
		emit(a, Event{Kind: kind, Resource: "cache", At: time.Now()})
	}
}

// DemotionHook adapts an Alerter into the orchestrator's source-demotion
// hook.
func DemotionHook(a Alerter) func(source string, until time.Time) {
	return func(source string, until time.Time) {
		emit(a, Event{
			Kind:     KindSourceDemoted,
			Resource: source,
			Detail:   "on cooldown until " + until.Format(time.RFC3339),
			At:       time.Now(),
		})
	}
}
