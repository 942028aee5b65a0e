package acquire

import (
	"context"
	"time"

	"edgepulse/internal/resilience/breaker"
)

// Status is a read-only snapshot of the orchestrator's health.
type Status struct {
	PreferredSource string
	Sources         []SourceStatus
	QueueDepth      int
	QueueDepths     map[string]int
	CacheDegraded   bool
	TrackedPosts    int
}

// SourceStatus describes one source in the chain.
type SourceStatus struct {
	Name           string
	Kind           string
	BreakerState   breaker.State
	FailureCount   int
	ManualOverride bool
	CooldownUntil  time.Time
	Stats          SourceStats
}

// Status builds the snapshot. It reads breaker, cooldown, queue, and cache
// state without mutating any of it.
func (s *Service) Status(ctx context.Context) Status {
	now := s.clock.Now()
	perSource := s.ring.PerSource()

	s.mu.Lock()
	cooldowns := make(map[string]time.Time, len(s.cooldownUntil))
	for name, until := range s.cooldownUntil {
		if now.Before(until) {
			cooldowns[name] = until
		}
	}
	s.mu.Unlock()

	status := Status{
		QueueDepth:    s.queue.Depth(),
		QueueDepths:   s.queue.DepthByOperation(),
		CacheDegraded: s.cache.Degraded(),
		TrackedPosts:  len(s.TrackedPosts(ctx)),
	}

	for _, src := range s.sources {
		st := s.breakers.Get(src.Name()).Status(ctx)
		entry := SourceStatus{
			Name:           src.Name(),
			Kind:           string(src.Kind()),
			BreakerState:   st.State,
			FailureCount:   st.FailureCount,
			ManualOverride: st.ManualOverride,
			CooldownUntil:  cooldowns[src.Name()],
			Stats:          perSource[src.Name()],
		}
		status.Sources = append(status.Sources, entry)

		if status.PreferredSource == "" && !s.isDemoted(ctx, src) {
			status.PreferredSource = src.Name()
		}
	}

	return status
}
