package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/infra/source"
	"edgepulse/internal/resilience/breaker"
	"edgepulse/internal/resilience/retry"
	"edgepulse/pkg/requestqueue"
)

// fakeCache is an in-memory Cache storing JSON blobs.
type fakeCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	degraded bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) bool {
	f.mu.Lock()
	raw, ok := f.data[key]
	f.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.data[key] = raw
	f.mu.Unlock()
	return nil
}

func (f *fakeCache) Degraded() bool { return f.degraded }

// fakeSource is a scripted source adapter counting its calls.
type fakeSource struct {
	name string
	kind source.Kind

	mu        sync.Mutex
	postCalls int
	userCalls int

	post func(ref entity.PostRef) (*entity.Post, error)
	user func(username string) (*entity.UserProfile, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Kind() source.Kind {
	if f.kind == "" {
		return source.KindAPI
	}
	return f.kind
}

func (f *fakeSource) FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error) {
	f.mu.Lock()
	f.postCalls++
	f.mu.Unlock()
	if f.post == nil {
		return nil, fmt.Errorf("%w: posts not scripted", entity.ErrNotSupported)
	}
	return f.post(ref)
}

func (f *fakeSource) FetchUser(ctx context.Context, username string) (*entity.UserProfile, error) {
	f.mu.Lock()
	f.userCalls++
	f.mu.Unlock()
	if f.user == nil {
		return nil, fmt.Errorf("%w: users not scripted", entity.ErrNotSupported)
	}
	return f.user(username)
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postCalls
}

func samplePost(id, sourceName string) *entity.Post {
	return &entity.Post{
		ID:      id,
		URL:     "https://x.com/builder/status/" + id,
		Content: "hello from " + sourceName,
		Author:  entity.Author{Username: "builder"},
		Source:  sourceName,
	}
}

func serves(sourceName string) func(entity.PostRef) (*entity.Post, error) {
	return func(ref entity.PostRef) (*entity.Post, error) {
		return samplePost(ref.ID, sourceName), nil
	}
}

func failsWith(err error) func(entity.PostRef) (*entity.Post, error) {
	return func(entity.PostRef) (*entity.Post, error) { return nil, err }
}

var (
	errRateLimit = fmt.Errorf("%w: quota exhausted", entity.ErrRateLimited)
	errUpstream  = &retry.HTTPError{StatusCode: 500, Message: "boom"}
)

// newTestService wires a service with a mock clock shared by the cooldown
// bookkeeping and the breakers, a real queue with generous budgets, and an
// in-memory cache. Per-source retries are zeroed so each walk step is one
// upstream call.
func newTestService(t *testing.T, clock *breaker.MockClock, srcs ...source.Source) (*Service, *fakeCache) {
	t.Helper()

	registry, err := breaker.NewRegistry(breaker.RegistryConfig{
		Defaults: breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Minute, HalfOpenMaxCalls: 1},
	}, nil, clock, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	queue, err := requestqueue.New(requestqueue.Config{
		DefaultBudget:       requestqueue.Budget{MaxRequests: 1000, Window: time.Hour},
		TickInterval:        10 * time.Millisecond,
		PolitenessDelay:     time.Nanosecond,
		BackoffInitialDelay: time.Millisecond,
		BackoffMaxDelay:     5 * time.Millisecond,
		IsRetryable:         retry.IsRetryable,
	}, requestqueue.NewInMemoryWindowStore(requestqueue.InMemoryWindowStoreConfig{}), nil, nil)
	if err != nil {
		t.Fatalf("requestqueue.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	t.Cleanup(cancel)

	retries := make(map[string]int, len(srcs))
	for _, src := range srcs {
		retries[src.Name()] = 0
	}

	fc := newFakeCache()
	svc, err := NewService(Config{SourceRetries: retries}, srcs, registry, queue, fc, clock)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, fc
}

func TestFetchPost_CachesResult(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: serves("a")}
	svc, _ := newTestService(t, clock, a)
	ctx := context.Background()
	ref := entity.PostRef{ID: "100", Username: "builder"}

	post, err := svc.FetchPost(ctx, ref)
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if post.Source != "a" {
		t.Errorf("Source = %q, want a", post.Source)
	}

	// Second call is served from cache.
	if _, err := svc.FetchPost(ctx, ref); err != nil {
		t.Fatalf("FetchPost (cached): %v", err)
	}
	if a.calls() != 1 {
		t.Errorf("source calls = %d, want 1", a.calls())
	}

	// The engagement snapshot was cached alongside the post.
	snap, err := svc.FetchEngagement(ctx, ref)
	if err != nil {
		t.Fatalf("FetchEngagement: %v", err)
	}
	if snap.Source != "a" {
		t.Errorf("snapshot source = %q", snap.Source)
	}
	if a.calls() != 1 {
		t.Errorf("engagement read hit upstream, calls = %d", a.calls())
	}

	// And the post landed in the tracked set.
	tracked := svc.TrackedPosts(ctx)
	if len(tracked) != 1 || tracked[0].ID != "100" {
		t.Errorf("tracked = %+v", tracked)
	}
}

func TestFetchPost_InvalidRef(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	svc, _ := newTestService(t, clock, &fakeSource{name: "a", post: serves("a")})

	if _, err := svc.FetchPost(context.Background(), entity.PostRef{ID: "abc"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestFetchPost_FallsThroughOnFailure(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errUpstream)}
	b := &fakeSource{name: "b", post: serves("b")}
	svc, _ := newTestService(t, clock, a, b)

	post, err := svc.FetchPost(context.Background(), entity.PostRef{ID: "101"})
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if post.Source != "b" {
		t.Errorf("Source = %q, want b", post.Source)
	}
	if a.calls() != 1 || b.calls() != 1 {
		t.Errorf("calls = a:%d b:%d, want 1 each", a.calls(), b.calls())
	}
}

func TestFetchPost_RateLimitCooldownSkipsSource(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errRateLimit)}
	b := &fakeSource{name: "b", post: serves("b")}
	svc, _ := newTestService(t, clock, a, b)
	ctx := context.Background()

	// First fetch: a rejects with a quota error, b serves it.
	post, err := svc.FetchPost(ctx, entity.PostRef{ID: "200"})
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if post.Source != "b" || a.calls() != 1 {
		t.Fatalf("expected fallthrough to b after one attempt on a")
	}

	// Within the cooldown, a is skipped entirely.
	if _, err := svc.FetchPost(ctx, entity.PostRef{ID: "201"}); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if a.calls() != 1 {
		t.Errorf("a attempted during cooldown, calls = %d", a.calls())
	}

	// After the cooldown, a is probed again; still rate limited, so it is
	// re-demoted and skipped on the call after that.
	clock.Advance(16 * time.Minute)
	if _, err := svc.FetchPost(ctx, entity.PostRef{ID: "202"}); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if a.calls() != 2 {
		t.Errorf("expected probe after cooldown, calls = %d", a.calls())
	}
	if _, err := svc.FetchPost(ctx, entity.PostRef{ID: "203"}); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if a.calls() != 2 {
		t.Errorf("a attempted after failed probe, calls = %d", a.calls())
	}
}

func TestFetchPost_AllSourcesExhausted(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errUpstream)}
	b := &fakeSource{name: "b", post: failsWith(errUpstream)}
	svc, _ := newTestService(t, clock, a, b)

	_, err := svc.FetchPost(context.Background(), entity.PostRef{ID: "300"})
	if !errors.Is(err, entity.ErrNoSourceAvailable) {
		t.Errorf("expected ErrNoSourceAvailable, got %v", err)
	}
}

func TestFetchPost_AllSourcesDemotedErrorMessage(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errRateLimit)}
	b := &fakeSource{name: "b", post: failsWith(errRateLimit)}
	svc, _ := newTestService(t, clock, a, b)
	ctx := context.Background()

	// First fetch demotes both sources.
	if _, err := svc.FetchPost(ctx, entity.PostRef{ID: "310"}); err == nil {
		t.Fatal("expected error with every source rate limited")
	}

	// Within the cooldown the walk skips every source; the error must
	// still name why rather than wrapping a nil join.
	_, err := svc.FetchPost(ctx, entity.PostRef{ID: "311"})
	if !errors.Is(err, entity.ErrNoSourceAvailable) {
		t.Fatalf("expected ErrNoSourceAvailable, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "demoted, cooling down") {
		t.Errorf("error does not mention demotion: %q", msg)
	}
	if strings.Contains(msg, "%!w") {
		t.Errorf("error wraps a nil join: %q", msg)
	}
	if a.calls() != 1 || b.calls() != 1 {
		t.Errorf("demoted sources were attempted, calls = a:%d b:%d", a.calls(), b.calls())
	}
}

func TestFetchPost_NotFoundDoesNotOpenBreaker(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(fmt.Errorf("%w: gone", entity.ErrNotFound))}
	svc, _ := newTestService(t, clock, a)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.FetchPost(ctx, entity.PostRef{ID: fmt.Sprintf("40%d", i)})
		if !errors.Is(err, entity.ErrNoSourceAvailable) || !errors.Is(err, entity.ErrNotFound) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}

	// Missing posts are the data's fault, not the source's.
	if a.calls() != 4 {
		t.Errorf("calls = %d, want 4", a.calls())
	}
	st := svc.Status(ctx)
	if st.Sources[0].BreakerState != breaker.StateClosed {
		t.Errorf("breaker state = %v, want CLOSED", st.Sources[0].BreakerState)
	}
}

func TestFetchPost_OpenBreakerSkipsSource(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errUpstream)}
	b := &fakeSource{name: "b", post: serves("b")}
	svc, _ := newTestService(t, clock, a, b)
	ctx := context.Background()

	// Two transient failures open a's breaker (threshold 2).
	for i := 0; i < 2; i++ {
		if _, err := svc.FetchPost(ctx, entity.PostRef{ID: fmt.Sprintf("50%d", i)}); err != nil {
			t.Fatalf("FetchPost: %v", err)
		}
	}
	if a.calls() != 2 {
		t.Fatalf("calls = %d, want 2", a.calls())
	}

	// While the breaker is open, a is skipped without an attempt.
	if _, err := svc.FetchPost(ctx, entity.PostRef{ID: "502"}); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if a.calls() != 2 {
		t.Errorf("a attempted while open, calls = %d", a.calls())
	}
}

func TestFetchUser_SkipsUnsupportedSources(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: serves("a")} // no user support
	b := &fakeSource{name: "b", user: func(username string) (*entity.UserProfile, error) {
		return &entity.UserProfile{Username: username, DisplayName: "The Builder", Source: "b"}, nil
	}}
	svc, _ := newTestService(t, clock, a, b)
	ctx := context.Background()

	profile, err := svc.FetchUser(ctx, "builder")
	if err != nil {
		t.Fatalf("FetchUser: %v", err)
	}
	if profile.Source != "b" {
		t.Errorf("Source = %q, want b", profile.Source)
	}

	// Cached on the second read.
	if _, err := svc.FetchUser(ctx, "builder"); err != nil {
		t.Fatalf("FetchUser (cached): %v", err)
	}
	if b.userCalls != 1 {
		t.Errorf("user calls = %d, want 1", b.userCalls)
	}
}

func TestRefreshEngagement_BypassesCaches(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: serves("a")}
	svc, _ := newTestService(t, clock, a)
	ctx := context.Background()
	ref := entity.PostRef{ID: "600", Username: "builder"}

	if _, err := svc.FetchPost(ctx, ref); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if _, err := svc.FetchEngagement(ctx, ref); err != nil {
		t.Fatalf("FetchEngagement: %v", err)
	}
	if a.calls() != 1 {
		t.Fatalf("calls = %d, want 1 before refresh", a.calls())
	}

	if _, err := svc.RefreshEngagement(ctx, ref); err != nil {
		t.Fatalf("RefreshEngagement: %v", err)
	}
	if a.calls() != 2 {
		t.Errorf("calls = %d, want 2 after forced refresh", a.calls())
	}
}

func TestFetchBatch_PreferredSourceServesBatch(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: func(ref entity.PostRef) (*entity.Post, error) {
		if ref.ID == "703" {
			return nil, fmt.Errorf("%w: gone", entity.ErrNotFound)
		}
		return samplePost(ref.ID, "a"), nil
	}}
	b := &fakeSource{name: "b", post: serves("b")}
	svc, _ := newTestService(t, clock, a, b)

	refs := []entity.PostRef{{ID: "701"}, {ID: "702"}, {ID: "703"}}
	results, err := svc.FetchBatch(context.Background(), refs)
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}

	// 2/3 served beats the fallthrough threshold, so b is never tried.
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
	if b.calls() != 0 {
		t.Errorf("b attempted despite batch success rate, calls = %d", b.calls())
	}
}

func TestFetchBatch_FallsThroughWhenRateTooLow(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errUpstream)}
	b := &fakeSource{name: "b", post: serves("b")}
	svc, _ := newTestService(t, clock, a, b)

	refs := []entity.PostRef{{ID: "711"}, {ID: "712"}}
	results, err := svc.FetchBatch(context.Background(), refs)
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2 via b", len(results))
	}
	for _, post := range results {
		if post.Source != "b" {
			t.Errorf("Source = %q, want b", post.Source)
		}
	}
}

func TestFetchBatch_AllFail(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errUpstream)}
	svc, _ := newTestService(t, clock, a)

	_, err := svc.FetchBatch(context.Background(), []entity.PostRef{{ID: "721"}})
	if !errors.Is(err, entity.ErrNoSourceAvailable) {
		t.Errorf("expected ErrNoSourceAvailable, got %v", err)
	}
}

func TestStatus_Snapshot(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: failsWith(errRateLimit)}
	b := &fakeSource{name: "b", post: serves("b")}
	svc, fc := newTestService(t, clock, a, b)
	ctx := context.Background()

	if _, err := svc.FetchPost(ctx, entity.PostRef{ID: "800"}); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}

	st := svc.Status(ctx)
	if st.PreferredSource != "b" {
		t.Errorf("PreferredSource = %q, want b (a is cooling down)", st.PreferredSource)
	}
	if len(st.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(st.Sources))
	}
	if st.Sources[0].CooldownUntil.IsZero() {
		t.Error("expected cooldown recorded for a")
	}
	if st.Sources[0].Stats.Attempts != 1 || st.Sources[0].Stats.Successes != 0 {
		t.Errorf("a stats = %+v", st.Sources[0].Stats)
	}
	if st.Sources[1].Stats.SuccessRate != 1 {
		t.Errorf("b stats = %+v", st.Sources[1].Stats)
	}
	if st.CacheDegraded {
		t.Error("cache should not be degraded")
	}
	if st.TrackedPosts != 1 {
		t.Errorf("TrackedPosts = %d, want 1", st.TrackedPosts)
	}

	fc.degraded = true
	if got := svc.Status(ctx); !got.CacheDegraded {
		t.Error("expected degraded flag surfaced")
	}
}

func TestNewService_Validation(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	registry, _ := breaker.NewRegistry(breaker.DefaultRegistryConfig(), nil, clock, nil)
	queue, _ := requestqueue.New(requestqueue.DefaultConfig(), requestqueue.NewInMemoryWindowStore(requestqueue.InMemoryWindowStoreConfig{}), nil, nil)

	if _, err := NewService(Config{}, nil, registry, queue, newFakeCache(), clock); err == nil {
		t.Error("expected error for empty source list")
	}
	if _, err := NewService(Config{}, []source.Source{&fakeSource{name: "a"}}, nil, queue, newFakeCache(), clock); err == nil {
		t.Error("expected error for nil registry")
	}
}

func TestPreferredSourceReordering(t *testing.T) {
	clock := breaker.NewMockClock(time.Now())
	a := &fakeSource{name: "a", post: serves("a")}
	b := &fakeSource{name: "b", post: serves("b")}

	registry, _ := breaker.NewRegistry(breaker.DefaultRegistryConfig(), nil, clock, nil)
	queue, _ := requestqueue.New(requestqueue.DefaultConfig(), requestqueue.NewInMemoryWindowStore(requestqueue.InMemoryWindowStoreConfig{}), nil, nil)

	svc, err := NewService(Config{PreferredSource: "b"}, []source.Source{a, b}, registry, queue, newFakeCache(), clock)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.sources[0].Name() != "b" {
		t.Errorf("first source = %q, want b", svc.sources[0].Name())
	}
}
