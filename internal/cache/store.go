// Package cache implements the resilient key-value store backing the
// acquisition layer: TTL'd reads and writes against Redis, corruption
// detection on both sides, and a bounded in-process fallback map that takes
// over while the backend is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"edgepulse/internal/observability/metrics"
)

// Clock abstracts time for deterministic expiry tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Backend is the protected key-value store the cache writes through.
// *circuitbreaker.KVCircuitBreaker satisfies this interface.
type Backend interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Config holds cache store configuration.
type Config struct {
	// FallbackCapacity bounds the in-process fallback map.
	FallbackCapacity int

	// ProbeInterval is how often the health probe checks a degraded
	// backend for recovery.
	ProbeInterval time.Duration
}

// DefaultConfig returns the default cache store configuration.
func DefaultConfig() Config {
	return Config{
		FallbackCapacity: 1000,
		ProbeInterval:    30 * time.Second,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.FallbackCapacity <= 0 {
		return fmt.Errorf("fallback capacity must be positive, got %d", c.FallbackCapacity)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %v", c.ProbeInterval)
	}
	return nil
}

// fallbackNoExpiryTTL bounds fallback-map residency for entries stored
// without a TTL, so oldest-expiry eviction stays meaningful.
const fallbackNoExpiryTTL = 24 * time.Hour

// Stats is a read-only snapshot of the store's degradation state.
type Stats struct {
	Degraded        bool `json:"degraded"`
	FallbackEntries int  `json:"fallback_entries"`
}

// Store is the resilient cache store. All operations degrade gracefully:
// backend unavailability flips the store into degraded mode (serving from
// the fallback map) instead of surfacing errors to callers.
type Store struct {
	backend  Backend
	fallback *fallbackMap
	clock    Clock
	cfg      Config
	degraded atomic.Bool
	hook     func(degraded bool)
}

// New creates a resilient cache store over the given backend.
// A nil clock defaults to the system clock.
func New(backend Backend, cfg Config, clock Clock) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("cache: backend is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cache: invalid config: %w", err)
	}
	if clock == nil {
		clock = systemClock{}
	}

	return &Store{
		backend:  backend,
		fallback: newFallbackMap(cfg.FallbackCapacity),
		clock:    clock,
		cfg:      cfg,
	}, nil
}

// SetDegradedHook registers fn to observe degraded-mode transitions. It is
// called with true on entering degraded mode and false on recovery. Register
// before the store handles traffic; fn must not block.
func (s *Store) SetDegradedHook(fn func(degraded bool)) {
	s.hook = fn
}

// Get looks up key and deserializes the stored value into dest.
// It reports whether a usable value was found. Corrupted entries are
// deleted and reported as a miss; backend failures flip the store into
// degraded mode and fall through to the fallback map. Get never errors.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, found := s.read(ctx, key)
	if !found {
		metrics.RecordCacheOperation("get", "miss")
		return false
	}

	if label, corrupted := DetectCorruption(raw); corrupted {
		s.purgeCorrupted(ctx, key, label)
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.purgeCorrupted(ctx, key, sentinelMalformed)
		return false
	}

	metrics.RecordCacheOperation("get", "hit")
	return true
}

// GetRaw looks up key and returns the stored serialized payload unparsed.
// Corruption handling matches Get.
func (s *Store) GetRaw(ctx context.Context, key string) (string, bool) {
	raw, found := s.read(ctx, key)
	if !found {
		metrics.RecordCacheOperation("get", "miss")
		return "", false
	}

	if label, corrupted := DetectCorruption(raw); corrupted {
		s.purgeCorrupted(ctx, key, label)
		return "", false
	}

	metrics.RecordCacheOperation("get", "hit")
	return raw, true
}

// Set serializes value and stores it under key with the given TTL.
// A zero TTL means no expiry on the backend. The returned error is only
// ever an input rejection (nil value or sentinel-shaped serialization);
// backend write failures degrade to the fallback map and return nil.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := Encode(value)
	if err != nil {
		metrics.RecordCacheOperation("set", "rejected")
		return err
	}

	if s.degraded.Load() {
		s.storeFallback(key, raw, ttl)
		metrics.RecordCacheOperation("set", "ok")
		return nil
	}

	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		s.enterDegraded("set", err)
		// Retry once against the fallback map so the write is not lost
		s.storeFallback(key, raw, ttl)
	}

	metrics.RecordCacheOperation("set", "ok")
	return nil
}

// Delete removes key from the store. Backend failures degrade rather than
// surface, so Delete always succeeds from the caller's perspective.
func (s *Store) Delete(ctx context.Context, key string) {
	s.fallback.delete(key)

	if !s.degraded.Load() {
		if err := s.backend.Del(ctx, key); err != nil {
			s.enterDegraded("delete", err)
		}
	}

	metrics.RecordCacheOperation("delete", "ok")
}

// Degraded reports whether the store is serving from the fallback map.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// Snapshot returns a read-only view of the store's degradation state.
func (s *Store) Snapshot() Stats {
	return Stats{
		Degraded:        s.degraded.Load(),
		FallbackEntries: s.fallback.len(),
	}
}

// Probe checks backend health once. On success a degraded store returns to
// normal operation.
func (s *Store) Probe(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return fmt.Errorf("cache: backend probe: %w", err)
	}

	if s.degraded.CompareAndSwap(true, false) {
		slog.Info("cache backend recovered, leaving degraded mode",
			slog.Int("fallback_entries", s.fallback.len()))
		metrics.SetCacheDegraded(false)
		if s.hook != nil {
			s.hook(false)
		}
	}
	return nil
}

// StartHealthProbe periodically probes a degraded backend until ctx is
// cancelled. Run it in its own goroutine.
func (s *Store) StartHealthProbe(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()

	slog.Info("cache health probe started",
		slog.Duration("interval", s.cfg.ProbeInterval))

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache health probe stopped")
			return

		case <-ticker.C:
			metrics.SetCacheFallbackEntries(s.fallback.len())

			if !s.degraded.Load() {
				continue
			}
			if err := s.Probe(ctx); err != nil {
				slog.Debug("cache backend still unreachable",
					slog.Any("error", err))
			}
		}
	}
}

// read fetches the raw payload, falling through to the fallback map when
// the backend is (or becomes) unreachable.
func (s *Store) read(ctx context.Context, key string) (string, bool) {
	if s.degraded.Load() {
		return s.fallback.get(key, s.clock.Now())
	}

	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.enterDegraded("get", err)
		return s.fallback.get(key, s.clock.Now())
	}
	return raw, found
}

// storeFallback writes to the fallback map, bounding residency for
// entries stored without a TTL.
func (s *Store) storeFallback(key, raw string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = fallbackNoExpiryTTL
	}
	s.fallback.set(key, raw, ttl, s.clock.Now())
	metrics.SetCacheFallbackEntries(s.fallback.len())
}

// purgeCorrupted removes a corrupted entry from both tiers and records it.
// Corruption is never surfaced to callers; the read proceeds as a miss.
func (s *Store) purgeCorrupted(ctx context.Context, key, label string) {
	slog.Warn("corrupted cache entry deleted",
		slog.String("key", key),
		slog.String("sentinel", label))

	s.Delete(ctx, key)
	metrics.RecordCacheCorruption(label)
	metrics.RecordCacheOperation("get", "miss")
}

// enterDegraded flips the store into degraded mode once per outage.
func (s *Store) enterDegraded(op string, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		slog.Warn("cache backend unreachable, entering degraded mode",
			slog.String("operation", op),
			slog.Any("error", err))
		metrics.SetCacheDegraded(true)
		if s.hook != nil {
			s.hook(true)
		}
	}
}
