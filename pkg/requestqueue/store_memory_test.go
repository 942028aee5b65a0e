package requestqueue

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestInMemoryWindowStore_PutGet(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryWindowStoreConfig{})
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	w := Window{OperationName: "lookup", Count: 2, WindowResetAt: time.Now().Add(time.Minute)}
	if err := store.Put(ctx, w); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(ctx, "lookup")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Count != 2 || !got.WindowResetAt.Equal(w.WindowResetAt) {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestInMemoryWindowStore_RejectsEmptyName(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryWindowStoreConfig{})
	if err := store.Put(context.Background(), Window{}); err == nil {
		t.Error("expected error for empty operation name")
	}
}

func TestInMemoryWindowStore_Cleanup(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryWindowStoreConfig{})
	ctx := context.Background()
	now := time.Now()

	_ = store.Put(ctx, Window{OperationName: "expired", WindowResetAt: now.Add(-time.Minute)})
	_ = store.Put(ctx, Window{OperationName: "live", WindowResetAt: now.Add(time.Minute)})

	dropped, err := store.Cleanup(ctx, now)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", dropped)
	}
	if _, ok, _ := store.Get(ctx, "expired"); ok {
		t.Error("expired window should have been dropped")
	}
	if _, ok, _ := store.Get(ctx, "live"); !ok {
		t.Error("live window should remain")
	}
}

func TestInMemoryWindowStore_EvictsSoonestWhenFull(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryWindowStoreConfig{MaxOperations: 3})
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		_ = store.Put(ctx, Window{
			OperationName: fmt.Sprintf("op-%d", i),
			WindowResetAt: base.Add(time.Duration(i+1) * time.Minute),
		})
	}

	// op-0 resets soonest, so it is the eviction victim.
	_ = store.Put(ctx, Window{OperationName: "op-new", WindowResetAt: base.Add(time.Hour)})

	if store.Len() != 3 {
		t.Fatalf("expected bound of 3 operations, got %d", store.Len())
	}
	if _, ok, _ := store.Get(ctx, "op-0"); ok {
		t.Error("expected op-0 evicted")
	}
	if _, ok, _ := store.Get(ctx, "op-new"); !ok {
		t.Error("expected op-new stored")
	}
}

func TestCacheWindowStore_RoundTrip(t *testing.T) {
	kv := newFakeKV()
	store := NewCacheWindowStore(kv, nil)
	ctx := context.Background()

	w := Window{OperationName: "lookup", Count: 1, WindowResetAt: time.Now().Add(time.Minute)}
	if err := store.Put(ctx, w); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if kv.ttls["rate_limit:lookup"] <= 0 {
		t.Error("expected a positive TTL on the persisted window")
	}

	got, ok, err := store.Get(ctx, "lookup")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Count != 1 {
		t.Errorf("expected count 1, got %d", got.Count)
	}

	if err := store.Delete(ctx, "lookup"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "lookup"); ok {
		t.Error("expected window gone after delete")
	}
}

func TestCacheWindowStore_ForeignBlobTreatedAsAbsent(t *testing.T) {
	kv := newFakeKV()
	store := NewCacheWindowStore(kv, nil)
	ctx := context.Background()

	// A window persisted under the wrong key (name mismatch).
	_ = kv.Set(ctx, "rate_limit:lookup", Window{OperationName: "other"}, time.Minute)

	if _, ok, _ := store.Get(ctx, "lookup"); ok {
		t.Error("expected mismatched blob treated as absent")
	}
	if _, exists := kv.data["rate_limit:lookup"]; exists {
		t.Error("expected mismatched blob deleted")
	}
}

// fakeKV is an in-memory KV recording TTLs.
type fakeKV struct {
	data map[string]Window
	ttls map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]Window), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Get(ctx context.Context, key string, dest interface{}) bool {
	w, ok := f.data[key]
	if !ok {
		return false
	}
	*dest.(*Window) = w
	return true
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.data[key] = value.(Window)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) {
	delete(f.data, key)
	delete(f.ttls, key)
}
