package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"edgepulse/internal/handler/http/respond"

	"golang.org/x/time/rate"
)

// IPRateLimiterConfig holds inbound per-IP rate limit configuration.
type IPRateLimiterConfig struct {
	// RequestsPerSecond is the sustained per-IP rate. Default: 10.
	RequestsPerSecond float64

	// Burst is the per-IP burst allowance. Default: 20.
	Burst int

	// IdleTTL is how long an IP's limiter survives without traffic before
	// the cleanup loop drops it. Default: 10 minutes.
	IdleTTL time.Duration

	// CleanupInterval is how often idle limiters are collected.
	// Default: 1 minute.
	CleanupInterval time.Duration
}

// ApplyDefaults sets default values for any missing configuration values.
func (c *IPRateLimiterConfig) ApplyDefaults() {
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst == 0 {
		c.Burst = 20
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = 10 * time.Minute
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = time.Minute
	}
}

// ipEntry pairs a token bucket with its last-seen time for idle eviction.
type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter rejects clients that exceed a per-IP token bucket. Entries
// for idle IPs are dropped by a background cleanup loop so the map stays
// bounded by the active client set.
type IPRateLimiter struct {
	cfg IPRateLimiterConfig

	mu      sync.Mutex
	entries map[string]*ipEntry
}

// NewIPRateLimiter creates a per-IP rate limiter.
func NewIPRateLimiter(cfg IPRateLimiterConfig) *IPRateLimiter {
	cfg.ApplyDefaults()
	return &IPRateLimiter{
		cfg:     cfg,
		entries: make(map[string]*ipEntry),
	}
}

// Limit applies the per-IP limit, answering 429 when the bucket is empty.
func (l *IPRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respond.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.entries[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// StartCleanup evicts idle entries until ctx is cancelled. Run it in its
// own goroutine.
func (l *IPRateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := l.evictIdle(time.Now()); dropped > 0 {
				slog.Debug("evicted idle rate limit entries",
					slog.Int("dropped", dropped))
			}
		}
	}
}

func (l *IPRateLimiter) evictIdle(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := 0
	for ip, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.cfg.IdleTTL {
			delete(l.entries, ip)
			dropped++
		}
	}
	return dropped
}

// Size returns the number of tracked IPs, for health reporting.
func (l *IPRateLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
