package acquire

import (
	"fmt"
	"time"
)

// Queue priorities used by the orchestrator. Interactive lookups outrank
// background refresh work so the worker never starves API callers.
const (
	PriorityInteractive = 5
	PriorityBackground  = 1
)

// Config holds the orchestrator settings.
type Config struct {
	// PerCallTimeout bounds a single source attempt.
	// Default: 10s
	PerCallTimeout time.Duration

	// CooldownDuration is how long a source stays demoted after a
	// rate-limit rejection. An upstream Retry-After hint overrides it
	// when longer.
	// Default: 15m
	CooldownDuration time.Duration

	// PreferredSource names the source tried first. Empty means the first
	// configured source.
	PreferredSource string

	// SourceRetries caps queue-level retries per source name. Sources not
	// listed use DefaultRetries.
	SourceRetries map[string]int

	// DefaultRetries is the retry cap for sources without an override.
	// Default: 3
	DefaultRetries int

	// PostTTL is the cache lifetime of full post payloads.
	// Default: 5m
	PostTTL time.Duration

	// EngagementTTL is the cache lifetime of engagement snapshots, kept
	// short because counts move fast.
	// Default: 1m
	EngagementTTL time.Duration

	// UserTTL is the cache lifetime of user profiles.
	// Default: 30m
	UserTTL time.Duration

	// BatchFallthroughRate is the per-batch success rate below which the
	// remaining refs fall through to the next source as a unit.
	// Default: 0.5
	BatchFallthroughRate float64

	// TrackedSetLimit bounds the tracked-post set consumed by the refresh
	// worker. Oldest entries are dropped first.
	// Default: 1000
	TrackedSetLimit int

	// AttemptHistorySize bounds the rolling attempt record ring.
	// Default: 1000
	AttemptHistorySize int

	// CommunityTags are matched case-insensitively against post content to
	// set the community flag. Empty disables tagging.
	CommunityTags []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	c := Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.PerCallTimeout <= 0 {
		c.PerCallTimeout = 10 * time.Second
	}
	if c.CooldownDuration <= 0 {
		c.CooldownDuration = 15 * time.Minute
	}
	if c.DefaultRetries == 0 {
		c.DefaultRetries = 3
	}
	if c.PostTTL <= 0 {
		c.PostTTL = 5 * time.Minute
	}
	if c.EngagementTTL <= 0 {
		c.EngagementTTL = time.Minute
	}
	if c.UserTTL <= 0 {
		c.UserTTL = 30 * time.Minute
	}
	if c.BatchFallthroughRate == 0 {
		c.BatchFallthroughRate = 0.5
	}
	if c.TrackedSetLimit <= 0 {
		c.TrackedSetLimit = 1000
	}
	if c.AttemptHistorySize <= 0 {
		c.AttemptHistorySize = 1000
	}
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if c.PerCallTimeout <= 0 {
		return fmt.Errorf("per-call timeout must be positive, got %v", c.PerCallTimeout)
	}
	if c.CooldownDuration <= 0 {
		return fmt.Errorf("cooldown duration must be positive, got %v", c.CooldownDuration)
	}
	if c.DefaultRetries < 0 {
		return fmt.Errorf("default retries must be non-negative, got %d", c.DefaultRetries)
	}
	for name, n := range c.SourceRetries {
		if n < 0 {
			return fmt.Errorf("retries for source %q must be non-negative, got %d", name, n)
		}
	}
	if c.BatchFallthroughRate < 0 || c.BatchFallthroughRate > 1 {
		return fmt.Errorf("batch fallthrough rate must be between 0 and 1, got %g", c.BatchFallthroughRate)
	}
	return nil
}

// retriesFor returns the retry cap for a source name.
func (c *Config) retriesFor(name string) int {
	if n, ok := c.SourceRetries[name]; ok {
		return n
	}
	return c.DefaultRetries
}
