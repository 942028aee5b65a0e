package cache

import (
	"sync"
	"time"
)

// fallbackEntry is one value held in the in-process fallback map.
type fallbackEntry struct {
	value     string
	expiresAt time.Time
}

// fallbackMap is the bounded in-process store used while the backing store
// is unreachable. When full, the entry closest to expiry is evicted to make
// room, so the freshest data survives degraded periods.
type fallbackMap struct {
	mu       sync.RWMutex
	entries  map[string]fallbackEntry
	capacity int
}

func newFallbackMap(capacity int) *fallbackMap {
	return &fallbackMap{
		entries:  make(map[string]fallbackEntry),
		capacity: capacity,
	}
}

// get returns the value for key if present and not expired.
// Expired entries are removed on access.
func (m *fallbackMap) get(key string, now time.Time) (string, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}

	if now.After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent set may have refreshed it
		if current, still := m.entries[key]; still && now.After(current.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return "", false
	}

	return entry.value, true
}

// set stores a value, evicting the oldest-expiry entry when at capacity.
func (m *fallbackMap) set(key, value string, ttl time.Duration, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.capacity {
		m.evictOldestLocked()
	}

	m.entries[key] = fallbackEntry{
		value:     value,
		expiresAt: now.Add(ttl),
	}
}

// evictOldestLocked removes the entry with the earliest expiry.
// Caller must hold the write lock.
func (m *fallbackMap) evictOldestLocked() {
	var oldestKey string
	var oldestExpiry time.Time

	for key, entry := range m.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.expiresAt
		}
	}

	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *fallbackMap) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *fallbackMap) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
