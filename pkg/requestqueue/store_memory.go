package requestqueue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryWindowStore is a thread-safe in-memory implementation of
// WindowStore.
//
// It bounds the number of tracked operations to prevent unbounded memory
// growth; when full, the window closest to expiry is evicted to make room.
// Pair it with a periodic Cleanup call to drop expired windows eagerly.
type InMemoryWindowStore struct {
	mu      sync.RWMutex
	windows map[string]Window
	maxOps  int
}

// InMemoryWindowStoreConfig holds configuration for InMemoryWindowStore.
type InMemoryWindowStoreConfig struct {
	// MaxOperations is the maximum number of operations to track.
	// Default: 1000.
	MaxOperations int
}

// NewInMemoryWindowStore creates an in-memory window store.
func NewInMemoryWindowStore(cfg InMemoryWindowStoreConfig) *InMemoryWindowStore {
	if cfg.MaxOperations <= 0 {
		cfg.MaxOperations = 1000
	}
	return &InMemoryWindowStore{
		windows: make(map[string]Window),
		maxOps:  cfg.MaxOperations,
	}
}

// Get returns the window for the operation.
func (s *InMemoryWindowStore) Get(ctx context.Context, operation string) (Window, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[operation]
	return w, ok, nil
}

// Put stores the window, evicting the window closest to expiry when the
// operation bound is reached.
func (s *InMemoryWindowStore) Put(ctx context.Context, w Window) error {
	if w.OperationName == "" {
		return fmt.Errorf("requestqueue: window operation name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.windows[w.OperationName]; !exists && len(s.windows) >= s.maxOps {
		s.evictSoonestLocked()
	}
	s.windows[w.OperationName] = w
	return nil
}

// Delete removes the operation's window.
func (s *InMemoryWindowStore) Delete(ctx context.Context, operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, operation)
	return nil
}

// Cleanup removes windows that expired before now.
func (s *InMemoryWindowStore) Cleanup(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for op, w := range s.windows {
		if w.Expired(now) {
			delete(s.windows, op)
			dropped++
		}
	}
	return dropped, nil
}

// Len returns the number of tracked operations.
func (s *InMemoryWindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

// evictSoonestLocked drops the window with the earliest reset time.
// Callers must hold the write lock.
func (s *InMemoryWindowStore) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for op, w := range s.windows {
		if victim == "" || w.WindowResetAt.Before(soonest) {
			victim = op
			soonest = w.WindowResetAt
		}
	}
	if victim != "" {
		delete(s.windows, victim)
	}
}
