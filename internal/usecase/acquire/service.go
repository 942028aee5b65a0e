// Package acquire orchestrates post acquisition across an ordered chain of
// upstream sources. Every attempt runs through the per-source circuit
// breaker and the rate-limited request queue; the orchestrator itself walks
// the chain sequentially, demotes rate-limited sources for a cooldown, and
// caches successes tagged with the producing source.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/infra/source"
	"edgepulse/internal/observability/metrics"
	"edgepulse/internal/observability/slo"
	"edgepulse/internal/observability/tracing"
	"edgepulse/internal/resilience/breaker"
	"edgepulse/internal/resilience/retry"
	"edgepulse/pkg/requestqueue"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// trackedPostsKey is the cache key of the bounded set of post references
// the refresh worker re-fetches engagement for.
const trackedPostsKey = "tracked_posts"

// Cache is the slice of the cache store the orchestrator needs.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Degraded() bool
}

// Clock abstracts time for cooldown bookkeeping in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// EngagementSnapshot is the cached engagement payload, tagged with the
// source that produced it.
type EngagementSnapshot struct {
	Engagement entity.Engagement
	Source     string
}

// Service is the fallback orchestrator.
type Service struct {
	cfg      Config
	sources  []source.Source
	breakers *breaker.Registry
	queue    *requestqueue.Queue
	cache    Cache
	clock    Clock

	mu            sync.Mutex
	cooldownUntil map[string]time.Time

	demotionHook func(source string, until time.Time)

	ring  *attemptRing
	group singleflight.Group

	fetches   atomic.Int64
	exhausted atomic.Int64
}

// NewService builds the orchestrator. The source order is the fallback
// order; cfg.PreferredSource, when set, is moved to the front.
func NewService(
	cfg Config,
	sources []source.Source,
	breakers *breaker.Registry,
	queue *requestqueue.Queue,
	cacheStore Cache,
	clock Clock,
) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("acquire config: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("acquire: at least one source is required")
	}
	if breakers == nil || queue == nil || cacheStore == nil {
		return nil, fmt.Errorf("acquire: breakers, queue, and cache are required")
	}
	if clock == nil {
		clock = systemClock{}
	}

	ordered := make([]source.Source, len(sources))
	copy(ordered, sources)
	if cfg.PreferredSource != "" {
		for i, src := range ordered {
			if src.Name() == cfg.PreferredSource {
				ordered[0], ordered[i] = ordered[i], ordered[0]
				break
			}
		}
	}

	return &Service{
		cfg:           cfg,
		sources:       ordered,
		breakers:      breakers,
		queue:         queue,
		cache:         cacheStore,
		clock:         clock,
		cooldownUntil: make(map[string]time.Time),
		ring:          newAttemptRing(cfg.AttemptHistorySize),
	}, nil
}

// SetDemotionHook registers fn to observe source demotions, e.g. for ops
// alerting. Register before the service handles traffic; fn must not block.
func (s *Service) SetDemotionHook(fn func(source string, until time.Time)) {
	s.demotionHook = fn
}

// FetchPost returns the post for a reference, from cache when fresh,
// otherwise through the source chain. Identical concurrent lookups are
// collapsed into one upstream fetch.
func (s *Service) FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error) {
	if err := entity.ValidatePostID(ref.ID); err != nil {
		return nil, err
	}

	v, err, _ := s.group.Do("post:"+ref.ID, func() (interface{}, error) {
		return s.fetchPost(ctx, ref, PriorityInteractive, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.Post), nil
}

// FetchUser returns a user profile, from cache when fresh.
func (s *Service) FetchUser(ctx context.Context, username string) (*entity.UserProfile, error) {
	if err := entity.ValidateUsername(username); err != nil {
		return nil, err
	}
	key := userKey(username)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var cached entity.UserProfile
		if s.cache.Get(ctx, key, &cached) {
			metrics.RecordFetch("user", "cache")
			return &cached, nil
		}

		result, err := s.walkSources(ctx, "user", PriorityInteractive, func(ctx context.Context, src source.Source) (interface{}, error) {
			return src.FetchUser(ctx, username)
		})
		if err != nil {
			metrics.RecordFetch("user", "exhausted")
			return nil, err
		}

		profile := result.(*entity.UserProfile)
		if err := s.cache.Set(ctx, key, profile, s.cfg.UserTTL); err != nil {
			slog.Warn("caching user profile failed",
				slog.String("username", username),
				slog.Any("error", err))
		}
		metrics.RecordFetch("user", "source")
		return profile, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.UserProfile), nil
}

// FetchEngagement returns the engagement counts for a post. The snapshot
// cache is deliberately short-lived; on a miss the chain is walked even if
// a full post payload is still cached, so counts are never older than the
// engagement TTL.
func (s *Service) FetchEngagement(ctx context.Context, ref entity.PostRef) (*EngagementSnapshot, error) {
	return s.fetchEngagement(ctx, ref, PriorityInteractive, false)
}

// RefreshEngagement re-fetches engagement from upstream at background
// priority, ignoring cached snapshots. The refresh worker calls this.
func (s *Service) RefreshEngagement(ctx context.Context, ref entity.PostRef) (*EngagementSnapshot, error) {
	return s.fetchEngagement(ctx, ref, PriorityBackground, true)
}

func (s *Service) fetchEngagement(ctx context.Context, ref entity.PostRef, priority int, force bool) (*EngagementSnapshot, error) {
	if err := entity.ValidatePostID(ref.ID); err != nil {
		return nil, err
	}
	key := engagementKey(ref.ID)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if !force {
			var cached EngagementSnapshot
			if s.cache.Get(ctx, key, &cached) {
				metrics.RecordFetch("engagement", "cache")
				return &cached, nil
			}
		}

		post, err := s.fetchPost(ctx, ref, priority, true)
		if err != nil {
			metrics.RecordFetch("engagement", "exhausted")
			return nil, err
		}

		snapshot := &EngagementSnapshot{Engagement: post.Engagement, Source: post.Source}
		metrics.RecordFetch("engagement", "source")
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EngagementSnapshot), nil
}

// fetchPost is the shared post path. skipCache forces an upstream walk;
// successes are always written back to both the post and engagement caches.
func (s *Service) fetchPost(ctx context.Context, ref entity.PostRef, priority int, skipCache bool) (*entity.Post, error) {
	key := postKey(ref.ID)

	if !skipCache {
		var cached entity.Post
		if s.cache.Get(ctx, key, &cached) {
			metrics.RecordFetch("post", "cache")
			return &cached, nil
		}
	}

	result, err := s.walkSources(ctx, "post", priority, func(ctx context.Context, src source.Source) (interface{}, error) {
		return src.FetchPost(ctx, ref)
	})
	if err != nil {
		metrics.RecordFetch("post", "exhausted")
		return nil, err
	}

	post := result.(*entity.Post)
	s.finalizePost(ctx, ref, post)
	metrics.RecordFetch("post", "source")
	return post, nil
}

// finalizePost tags, caches, and tracks a freshly fetched post.
func (s *Service) finalizePost(ctx context.Context, ref entity.PostRef, post *entity.Post) {
	post.CommunityTagged = post.MentionsCommunity(s.cfg.CommunityTags)

	if err := s.cache.Set(ctx, postKey(post.ID), post, s.cfg.PostTTL); err != nil {
		slog.Warn("caching post failed",
			slog.String("post_id", post.ID),
			slog.Any("error", err))
	}
	snapshot := EngagementSnapshot{Engagement: post.Engagement, Source: post.Source}
	if err := s.cache.Set(ctx, engagementKey(post.ID), snapshot, s.cfg.EngagementTTL); err != nil {
		slog.Warn("caching engagement failed",
			slog.String("post_id", post.ID),
			slog.Any("error", err))
	}

	s.trackPost(ctx, entity.PostRef{ID: post.ID, Username: post.Author.Username})
}

// FetchBatch fetches many posts, preferring one source for the whole batch.
// When a source resolves less than the configured fraction of the remaining
// refs, the leftovers fall through to the next source as a unit. The result
// maps post ID to post; refs nothing could serve are simply absent, and an
// aggregate error is returned only when no ref could be served at all.
func (s *Service) FetchBatch(ctx context.Context, refs []entity.PostRef) (map[string]*entity.Post, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", entity.ErrInvalidInput)
	}

	results := make(map[string]*entity.Post)
	var pending []entity.PostRef
	for _, ref := range refs {
		if err := entity.ValidatePostID(ref.ID); err != nil {
			return nil, err
		}
		var cached entity.Post
		if s.cache.Get(ctx, postKey(ref.ID), &cached) {
			results[ref.ID] = &cached
			metrics.RecordFetch("post", "cache")
			continue
		}
		pending = append(pending, ref)
	}
	if len(pending) == 0 {
		return results, nil
	}

	var errs []error
	for _, src := range s.sources {
		if len(pending) == 0 {
			break
		}
		if s.isDemoted(ctx, src) {
			continue
		}

		var still []entity.PostRef
		served := 0
		for i, ref := range pending {
			result, err := s.attempt(ctx, src, "batch", PriorityInteractive, func(ctx context.Context, src source.Source) (interface{}, error) {
				return src.FetchPost(ctx, ref)
			})
			if err != nil {
				still = append(still, ref)
				errs = append(errs, fmt.Errorf("%s %s: %w", src.Name(), ref.ID, err))
				if s.demoteIfRateLimited(src, err) {
					// The source just ran out of quota; stop feeding it
					// the rest of the batch.
					still = append(still, pending[i+1:]...)
					break
				}
				continue
			}

			post := result.(*entity.Post)
			s.finalizePost(ctx, ref, post)
			results[ref.ID] = post
			metrics.RecordFetch("post", "source")
			served++
		}

		rate := float64(served) / float64(len(pending))
		pending = still
		if rate >= s.cfg.BatchFallthroughRate {
			break
		}
	}

	s.fetches.Add(1)
	if len(results) == 0 && len(pending) > 0 {
		s.exhausted.Add(1)
		s.updateExhaustionRate()
		if joined := errors.Join(errs...); joined != nil {
			return nil, fmt.Errorf("%w: batch of %d refs: %w", entity.ErrNoSourceAvailable, len(refs), joined)
		}
		return nil, fmt.Errorf("%w: batch of %d refs: all sources demoted", entity.ErrNoSourceAvailable, len(refs))
	}
	s.updateExhaustionRate()
	return results, nil
}

// attemptFunc invokes one verb on one source.
type attemptFunc func(ctx context.Context, src source.Source) (interface{}, error)

// walkSources tries each eligible source in order until one succeeds.
func (s *Service) walkSources(ctx context.Context, verb string, priority int, call attemptFunc) (interface{}, error) {
	s.fetches.Add(1)
	defer s.updateExhaustionRate()

	var errs []error
	for _, src := range s.sources {
		if s.isDemoted(ctx, src) {
			errs = append(errs, fmt.Errorf("%s: demoted, cooling down", src.Name()))
			continue
		}

		result, err := s.attempt(ctx, src, verb, priority, call)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, entity.ErrNotSupported) {
			// The adapter cannot serve this verb at all; not a failure.
			continue
		}

		if errors.Is(err, breaker.ErrOpen) || errors.Is(err, breaker.ErrProbing) {
			errs = append(errs, fmt.Errorf("%s: %w: %w", src.Name(), entity.ErrSourceUnavailable, err))
		} else {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}

		s.demoteIfRateLimited(src, err)
	}

	s.exhausted.Add(1)
	if joined := errors.Join(errs...); joined != nil {
		return nil, fmt.Errorf("%w for %s: %w", entity.ErrNoSourceAvailable, verb, joined)
	}
	// Every source skipped the verb entirely; there is nothing to join.
	return nil, fmt.Errorf("%w for %s: no source supports it", entity.ErrNoSourceAvailable, verb)
}

// attemptOutcome carries a benign failure through the breaker as a success
// so missing data never opens a circuit.
type attemptOutcome struct {
	result interface{}
	err    error
}

// attempt schedules one source call through the queue and its breaker and
// waits for the outcome.
func (s *Service) attempt(ctx context.Context, src source.Source, verb string, priority int, call attemptFunc) (interface{}, error) {
	future, err := s.queue.Enqueue(ctx, requestqueue.Request{
		OperationName: src.Name() + ":" + verb,
		Priority:      priority,
		MaxRetries:    s.cfg.retriesFor(src.Name()),
		Execute: func(ctx context.Context) (interface{}, error) {
			return s.execute(ctx, src, verb, call)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s:%s: %w", src.Name(), verb, err)
	}

	result, err := future.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// execute runs one attempt inside the source's breaker, with the per-call
// timeout and a span, and records the outcome in the rolling window.
func (s *Service) execute(ctx context.Context, src source.Source, verb string, call attemptFunc) (interface{}, error) {
	b := s.breakers.Get(src.Name())

	res, err := b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
		defer cancel()

		spanCtx, span := tracing.GetTracer().Start(callCtx, "acquire."+verb)
		span.SetAttributes(attribute.String("source", src.Name()))
		defer span.End()

		start := s.clock.Now()
		result, callErr := call(spanCtx, src)
		s.recordAttempt(src.Name(), verb, callErr, s.clock.Now().Sub(start))

		if callErr != nil {
			span.RecordError(callErr)
			if benign(callErr) {
				return attemptOutcome{err: callErr}, nil
			}
			return nil, callErr
		}
		return attemptOutcome{result: result}, nil
	})
	if err != nil {
		return nil, err
	}

	out := res.(attemptOutcome)
	if out.err != nil {
		return nil, out.err
	}
	return out.result, nil
}

// isDemoted reports whether a source should be skipped: cooldown active, or
// breaker open with its recovery timer still running. An elapsed recovery
// timer means the next call is the half-open trial, so the source stays
// eligible then.
func (s *Service) isDemoted(ctx context.Context, src source.Source) bool {
	now := s.clock.Now()

	s.mu.Lock()
	until, cooling := s.cooldownUntil[src.Name()]
	if cooling && !now.Before(until) {
		delete(s.cooldownUntil, src.Name())
		cooling = false
	}
	s.mu.Unlock()
	if cooling {
		return true
	}

	st := s.breakers.Get(src.Name()).Status(ctx)
	if st.ManualOverride {
		return false
	}
	return st.State == breaker.StateOpen && now.Before(st.NextAttemptTime)
}

// demoteIfRateLimited puts a source on cooldown when the error signals
// quota exhaustion, honoring a longer upstream Retry-After hint.
func (s *Service) demoteIfRateLimited(src source.Source, err error) bool {
	if !errors.Is(err, entity.ErrRateLimited) && !retry.IsRateLimited(err) {
		return false
	}

	cooldown := s.cfg.CooldownDuration
	if hint, ok := retry.RetryAfterHint(err); ok && hint > cooldown {
		cooldown = hint
	}
	until := s.clock.Now().Add(cooldown)

	s.mu.Lock()
	s.cooldownUntil[src.Name()] = until
	s.mu.Unlock()

	metrics.RecordSourceDemotion(src.Name())
	slog.Warn("source demoted after rate limit",
		slog.String("source", src.Name()),
		slog.Time("until", until),
		slog.Any("error", err))
	if s.demotionHook != nil {
		s.demotionHook(src.Name(), until)
	}
	return true
}

// recordAttempt feeds the rolling window, the attempt metrics, and the
// SLO gauges.
func (s *Service) recordAttempt(sourceName, verb string, err error, latency time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	s.ring.Add(SourceAttemptRecord{
		Source:    sourceName,
		Verb:      verb,
		Success:   err == nil,
		Latency:   latency,
		ErrorKind: errorKind(err),
		At:        s.clock.Now(),
	})
	metrics.RecordSourceAttempt(sourceName, verb, result, latency)

	if rate, ok := s.ring.OverallSuccessRate(); ok {
		slo.UpdateAvailability(rate)
		slo.UpdateErrorRate(1 - rate)
	}
}

func (s *Service) updateExhaustionRate() {
	total := s.fetches.Load()
	if total == 0 {
		return
	}
	slo.UpdateExhaustionRate(float64(s.exhausted.Load()) / float64(total))
}

// trackPost records a fetched post in the bounded tracked set the refresh
// worker consumes. The read-modify-write against a shared cache is not
// atomic; concurrent processes can lose an entry, which only delays its
// next refresh.
func (s *Service) trackPost(ctx context.Context, ref entity.PostRef) {
	var tracked []entity.PostRef
	s.cache.Get(ctx, trackedPostsKey, &tracked)

	for _, t := range tracked {
		if t.ID == ref.ID {
			return
		}
	}
	tracked = append(tracked, ref)
	if len(tracked) > s.cfg.TrackedSetLimit {
		tracked = tracked[len(tracked)-s.cfg.TrackedSetLimit:]
	}

	if err := s.cache.Set(ctx, trackedPostsKey, tracked, 0); err != nil {
		slog.Warn("updating tracked posts failed",
			slog.String("post_id", ref.ID),
			slog.Any("error", err))
	}
}

// TrackedPosts returns the refs currently in the tracked set.
func (s *Service) TrackedPosts(ctx context.Context) []entity.PostRef {
	var tracked []entity.PostRef
	s.cache.Get(ctx, trackedPostsKey, &tracked)
	return tracked
}

func postKey(id string) string       { return "post:" + id }
func engagementKey(id string) string { return "engagement:" + id }
func userKey(username string) string { return "user:" + strings.ToLower(username) }
