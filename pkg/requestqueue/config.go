package requestqueue

import (
	"fmt"
	"time"
)

// Budget is a fixed request allowance over a time window.
type Budget struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int

	// Window is the budget's time window.
	Window time.Duration
}

// Config contains the configuration for the request queue.
type Config struct {
	// DefaultBudget applies to operations without an explicit budget.
	// Default: 50 requests per 15 minutes.
	DefaultBudget Budget

	// Budgets maps operation names onto per-operation budgets.
	Budgets map[string]Budget

	// TickInterval is the scheduler's periodic wake-up; work arriving while
	// the queue is idle additionally kicks the scheduler immediately.
	// Default: 5 seconds.
	TickInterval time.Duration

	// MaxWindowWait caps how long the scheduler sleeps on an exhausted
	// window before re-checking, so a long window never blocks the loop
	// unboundedly. Default: 60 seconds.
	MaxWindowWait time.Duration

	// PolitenessDelay is the fixed pause between consecutive executions.
	// Default: 1 second.
	PolitenessDelay time.Duration

	// MaxPending bounds the number of queued requests; Enqueue rejects
	// beyond it. Default: 1000.
	MaxPending int

	// BackoffInitialDelay seeds the exponential retry backoff.
	// Default: 1 second.
	BackoffInitialDelay time.Duration

	// BackoffMaxDelay caps the retry backoff. Default: 60 seconds.
	BackoffMaxDelay time.Duration

	// BackoffMultiplier is the per-retry growth factor. Default: 2.0.
	BackoffMultiplier float64

	// BackoffJitterFraction is the fraction of the delay added as random
	// jitter (0.0 to 1.0). Default: 0.1.
	BackoffJitterFraction float64

	// IsRetryable classifies errors: only errors it accepts are backed off
	// and retried, everything else rejects the future immediately.
	// Default: retry every error.
	IsRetryable func(error) bool
}

// DefaultConfig returns a Config with safe default values.
func DefaultConfig() Config {
	c := Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults sets default values for any missing or zero configuration
// values.
func (c *Config) ApplyDefaults() {
	if c.DefaultBudget.MaxRequests == 0 {
		c.DefaultBudget.MaxRequests = 50
	}
	if c.DefaultBudget.Window == 0 {
		c.DefaultBudget.Window = 15 * time.Minute
	}
	if c.TickInterval == 0 {
		c.TickInterval = 5 * time.Second
	}
	if c.MaxWindowWait == 0 {
		c.MaxWindowWait = 60 * time.Second
	}
	if c.PolitenessDelay == 0 {
		c.PolitenessDelay = 1 * time.Second
	}
	if c.MaxPending == 0 {
		c.MaxPending = 1000
	}
	if c.BackoffInitialDelay == 0 {
		c.BackoffInitialDelay = 1 * time.Second
	}
	if c.BackoffMaxDelay == 0 {
		c.BackoffMaxDelay = 60 * time.Second
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.BackoffJitterFraction == 0 {
		c.BackoffJitterFraction = 0.1
	}
	if c.IsRetryable == nil {
		c.IsRetryable = func(error) bool { return true }
	}
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if err := validateBudget("DefaultBudget", c.DefaultBudget); err != nil {
		return err
	}
	for op, b := range c.Budgets {
		if op == "" {
			return fmt.Errorf("Budgets contains an empty operation name")
		}
		if err := validateBudget(fmt.Sprintf("Budgets[%q]", op), b); err != nil {
			return err
		}
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("TickInterval must be positive, got %s", c.TickInterval)
	}
	if c.MaxWindowWait <= 0 {
		return fmt.Errorf("MaxWindowWait must be positive, got %s", c.MaxWindowWait)
	}
	if c.PolitenessDelay < 0 {
		return fmt.Errorf("PolitenessDelay must be non-negative, got %s", c.PolitenessDelay)
	}
	if c.MaxPending <= 0 {
		return fmt.Errorf("MaxPending must be positive, got %d", c.MaxPending)
	}
	if c.BackoffInitialDelay <= 0 {
		return fmt.Errorf("BackoffInitialDelay must be positive, got %s", c.BackoffInitialDelay)
	}
	if c.BackoffMaxDelay < c.BackoffInitialDelay {
		return fmt.Errorf("BackoffMaxDelay must be >= BackoffInitialDelay, got %s < %s",
			c.BackoffMaxDelay, c.BackoffInitialDelay)
	}
	if c.BackoffMultiplier < 1.0 {
		return fmt.Errorf("BackoffMultiplier must be >= 1.0, got %g", c.BackoffMultiplier)
	}
	if c.BackoffJitterFraction < 0 || c.BackoffJitterFraction > 1.0 {
		return fmt.Errorf("BackoffJitterFraction must be in [0.0, 1.0], got %g", c.BackoffJitterFraction)
	}
	return nil
}

// BudgetFor returns the budget that applies to the operation.
func (c *Config) BudgetFor(operation string) Budget {
	if b, ok := c.Budgets[operation]; ok {
		return b
	}
	return c.DefaultBudget
}

func validateBudget(name string, b Budget) error {
	if b.MaxRequests <= 0 {
		return fmt.Errorf("%s.MaxRequests must be positive, got %d", name, b.MaxRequests)
	}
	if b.Window <= 0 {
		return fmt.Errorf("%s.Window must be positive, got %s", name, b.Window)
	}
	return nil
}
