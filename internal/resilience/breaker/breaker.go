// Package breaker implements the per-resource circuit breaker protecting
// upstream data sources.
//
// Each breaker walks the CLOSED -> OPEN -> HALF_OPEN state machine: repeated
// failures open it, the recovery timer admits exactly one trial call, and the
// trial's outcome decides between closing again and re-opening. Status is
// persisted through the cache store so breaker positions survive restarts.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edgepulse/internal/observability/metrics"
)

// Sentinel errors surfaced when a call is denied without reaching the
// protected resource.
var (
	// ErrOpen indicates the breaker is open and the recovery timer has not
	// elapsed yet.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrProbing indicates the breaker is half-open and its trial slot is
	// already taken by another in-flight call.
	ErrProbing = errors.New("circuit breaker is probing recovery")
)

// Operation is a protected call.
type Operation func(ctx context.Context) (interface{}, error)

// Fallback provides a degraded result when the breaker denies direct
// execution or the operation itself fails. cause carries the denial or
// operation error.
type Fallback func(ctx context.Context, cause error) (interface{}, error)

// StatusStore persists breaker status between processes and restarts.
// *cache.Store satisfies this interface.
type StatusStore interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string)
}

// StateChangeHook observes breaker transitions. It is called synchronously
// while the breaker's lock is held and must not call back into the breaker.
type StateChangeHook func(name string, from, to State)

// Config holds per-resource circuit breaker configuration.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default: 5.
	FailureThreshold int

	// RecoveryTimeout is how long an open breaker denies calls before
	// admitting a recovery trial. Default: 5 minutes.
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls bounds concurrent trial calls while half-open.
	// Default: 1, i.e. exactly one trial in flight.
	HalfOpenMaxCalls int
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  5 * time.Minute,
		HalfOpenMaxCalls: 1,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("recovery timeout must be positive, got %v", c.RecoveryTimeout)
	}
	if c.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("half-open max calls must be positive, got %d", c.HalfOpenMaxCalls)
	}
	return nil
}

// Breaker guards one named external resource.
type Breaker struct {
	name  string
	cfg   Config
	store StatusStore
	clock Clock
	hook  StateChangeHook

	mu     sync.Mutex
	status Status
	loaded bool
	trials int
}

// New creates a breaker for the named resource. store may be nil, in which
// case status lives only in memory. A nil clock defaults to the system clock.
func New(name string, cfg Config, store StatusStore, clock Clock, hook StateChangeHook) (*Breaker, error) {
	if name == "" {
		return nil, fmt.Errorf("breaker: name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("breaker %s: invalid config: %w", name, err)
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Breaker{
		name:   name,
		cfg:    cfg,
		store:  store,
		clock:  clock,
		hook:   hook,
		status: newStatus(name),
	}, nil
}

// Name returns the protected resource's name.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs op under breaker protection.
func (b *Breaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	return b.ExecuteWithFallback(ctx, op, nil)
}

// ExecuteWithFallback runs op under breaker protection. When the breaker
// denies the call, or op itself fails, fb (if non-nil) is invoked with the
// cause and its result returned instead.
func (b *Breaker) ExecuteWithFallback(ctx context.Context, op Operation, fb Fallback) (interface{}, error) {
	trial, denyErr := b.admit(ctx)
	if denyErr != nil {
		metrics.BreakerShortCircuitsTotal.WithLabelValues(b.name).Inc()
		slog.Debug("circuit breaker denied call",
			slog.String("breaker", b.name),
			slog.Any("reason", denyErr))

		if fb != nil {
			return fb(ctx, denyErr)
		}
		return nil, fmt.Errorf("%s: %w", b.name, denyErr)
	}

	result, err := op(ctx)
	if err != nil {
		b.recordFailure(ctx, trial)
		if fb != nil {
			return fb(ctx, err)
		}
		return nil, err
	}

	b.recordSuccess(ctx, trial)
	return result, nil
}

// Status returns a snapshot of the breaker's current status.
func (b *Breaker) Status(ctx context.Context) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadLocked(ctx)
	return b.status
}

// State returns the breaker's current state.
func (b *Breaker) State(ctx context.Context) State {
	return b.Status(ctx).State
}

// SetManualOverride toggles the operator override. While set, calls are never
// short-circuited; successes and failures are still recorded.
func (b *Breaker) SetManualOverride(ctx context.Context, enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadLocked(ctx)

	if b.status.ManualOverride == enabled {
		return
	}
	b.status.ManualOverride = enabled
	b.persistLocked(ctx)

	slog.Warn("circuit breaker manual override changed",
		slog.String("breaker", b.name),
		slog.Bool("enabled", enabled))
}

// Reset forces the breaker back to CLOSED with a zero failure count.
func (b *Breaker) Reset(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadLocked(ctx)

	b.trials = 0
	b.status.FailureCount = 0
	b.status.NextAttemptTime = time.Time{}
	if b.status.State != StateClosed {
		b.transitionLocked(StateClosed)
	}
	b.persistLocked(ctx)
}

// admit decides whether a call may proceed. It returns whether the admitted
// call is a half-open trial, and a denial error when the call may not run.
func (b *Breaker) admit(ctx context.Context) (trial bool, denyErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadLocked(ctx)

	if b.status.ManualOverride {
		return false, nil
	}

	switch b.status.State {
	case StateClosed:
		return false, nil

	case StateOpen:
		if b.clock.Now().Before(b.status.NextAttemptTime) {
			return false, ErrOpen
		}
		// Recovery timer elapsed: this call becomes the trial.
		b.transitionLocked(StateHalfOpen)
		b.persistLocked(ctx)
		b.trials = 1
		return true, nil

	case StateHalfOpen:
		if b.trials >= b.cfg.HalfOpenMaxCalls {
			return false, ErrProbing
		}
		b.trials++
		return true, nil

	default:
		return false, nil
	}
}

// recordSuccess applies a successful outcome to the state machine.
func (b *Breaker) recordSuccess(ctx context.Context, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial && b.trials > 0 {
		b.trials--
	}

	switch b.status.State {
	case StateHalfOpen:
		if !trial {
			// An override-bypassed call; the trial's verdict decides.
			return
		}
		b.status.FailureCount = 0
		b.status.NextAttemptTime = time.Time{}
		b.transitionLocked(StateClosed)

	case StateOpen:
		// Only reachable under manual override. A success is taken as
		// evidence of recovery.
		b.status.FailureCount = 0
		b.status.NextAttemptTime = time.Time{}
		b.transitionLocked(StateClosed)

	default:
		if b.status.FailureCount == 0 {
			return
		}
		b.status.FailureCount = 0
	}

	b.persistLocked(ctx)
}

// recordFailure applies a failed outcome to the state machine.
func (b *Breaker) recordFailure(ctx context.Context, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial && b.trials > 0 {
		b.trials--
	}

	now := b.clock.Now()
	b.status.FailureCount++
	b.status.LastFailureTime = now

	switch b.status.State {
	case StateHalfOpen:
		if trial {
			b.status.NextAttemptTime = now.Add(b.cfg.RecoveryTimeout)
			b.transitionLocked(StateOpen)
		}

	case StateClosed:
		if b.status.FailureCount >= b.cfg.FailureThreshold {
			b.status.NextAttemptTime = now.Add(b.cfg.RecoveryTimeout)
			b.transitionLocked(StateOpen)
		}

	case StateOpen:
		// Override-bypassed failure while open: push the recovery timer out.
		b.status.NextAttemptTime = now.Add(b.cfg.RecoveryTimeout)
	}

	b.persistLocked(ctx)
}

// loadLocked hydrates the in-memory status from the store once. A missing,
// corrupted, or invalid persisted blob yields a fresh CLOSED status.
// Callers must hold b.mu.
func (b *Breaker) loadLocked(ctx context.Context) {
	if b.loaded {
		return
	}
	b.loaded = true

	if b.store == nil {
		return
	}

	var persisted Status
	if !b.store.Get(ctx, statusKey(b.name), &persisted) {
		return
	}
	if err := persisted.validate(); err != nil || persisted.Name != b.name {
		slog.Warn("discarding invalid persisted breaker status",
			slog.String("breaker", b.name),
			slog.Any("error", err))
		b.store.Delete(ctx, statusKey(b.name))
		return
	}

	b.status = persisted
	metrics.BreakerState.WithLabelValues(b.name).Set(stateValue(b.status.State))

	slog.Info("restored persisted breaker status",
		slog.String("breaker", b.name),
		slog.String("state", b.status.State.String()),
		slog.Int("failure_count", b.status.FailureCount))
}

// persistLocked writes the current status through the store. Persistence
// failures are warnings, never fatal. Callers must hold b.mu.
func (b *Breaker) persistLocked(ctx context.Context) {
	if b.store == nil {
		return
	}
	if err := b.store.Set(ctx, statusKey(b.name), b.status, 0); err != nil {
		slog.Warn("failed to persist breaker status",
			slog.String("breaker", b.name),
			slog.Any("error", err))
	}
}

// transitionLocked moves the state machine and notifies observers.
// Callers must hold b.mu and persist afterwards.
func (b *Breaker) transitionLocked(to State) {
	from := b.status.State
	if from == to {
		return
	}
	b.status.State = to

	metrics.BreakerState.WithLabelValues(b.name).Set(stateValue(to))
	metrics.BreakerTransitionsTotal.WithLabelValues(b.name, from.String(), to.String()).Inc()

	slog.Warn("circuit breaker state changed",
		slog.String("breaker", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failure_count", b.status.FailureCount))

	if b.hook != nil {
		b.hook(b.name, from, to)
	}
}

// stateValue maps a state onto the metric gauge encoding.
func stateValue(s State) float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}
