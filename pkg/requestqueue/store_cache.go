package requestqueue

import (
	"context"
	"time"
)

// KV is the key-value surface the cache-backed window store writes through.
// It matches the resilient cache store's contract: reads report presence
// rather than erroring, and writes only fail on input rejection.
type KV interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string)
}

// CacheWindowStore persists rate-limit windows through a shared key-value
// store at "rate_limit:<operation>", so request budgets survive process
// restarts and are visible to sibling processes.
//
// Updates through a shared store are read-modify-write, not atomic:
// concurrent processes can race on Count and briefly overspend a budget.
// This is an accepted, documented limitation.
type CacheWindowStore struct {
	kv    KV
	clock Clock
}

// NewCacheWindowStore creates a window store over the given key-value store.
// A nil clock defaults to the system clock.
func NewCacheWindowStore(kv KV, clock Clock) *CacheWindowStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CacheWindowStore{kv: kv, clock: clock}
}

// windowKey returns the cache key for an operation's window.
func windowKey(operation string) string {
	return "rate_limit:" + operation
}

// Get returns the persisted window for the operation.
func (s *CacheWindowStore) Get(ctx context.Context, operation string) (Window, bool, error) {
	var w Window
	if !s.kv.Get(ctx, windowKey(operation), &w) {
		return Window{}, false, nil
	}
	if w.OperationName != operation {
		// A foreign or mangled blob under our key; treat as absent.
		s.kv.Delete(ctx, windowKey(operation))
		return Window{}, false, nil
	}
	return w, true, nil
}

// Put stores the window with a TTL reaching just past its reset time, so
// stale windows age out of the shared store on their own.
func (s *CacheWindowStore) Put(ctx context.Context, w Window) error {
	ttl := w.WindowResetAt.Sub(s.clock.Now()) + time.Minute
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.kv.Set(ctx, windowKey(w.OperationName), w, ttl)
}

// Delete removes the operation's window.
func (s *CacheWindowStore) Delete(ctx context.Context, operation string) error {
	s.kv.Delete(ctx, windowKey(operation))
	return nil
}

// Cleanup is a no-op for the cache-backed store: entries expire via TTL.
func (s *CacheWindowStore) Cleanup(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
