package breaker

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the circuit breaker state machine position.
type State string

const (
	// StateClosed is the normal operating state: calls run directly.
	StateClosed State = "CLOSED"

	// StateOpen denies calls until the recovery timer elapses.
	StateOpen State = "OPEN"

	// StateHalfOpen admits exactly one trial call to probe recovery.
	StateHalfOpen State = "HALF_OPEN"
)

// IsValid checks if the state is a recognized value.
func (s State) IsValid() bool {
	switch s {
	case StateClosed, StateOpen, StateHalfOpen:
		return true
	default:
		return false
	}
}

// String returns the state's wire representation.
func (s State) String() string {
	return string(s)
}

// UnmarshalJSON validates the state on decode so a corrupted persisted blob
// never yields an unknown state.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("breaker state: %w", err)
	}
	st := State(raw)
	if !st.IsValid() {
		return fmt.Errorf("breaker state: unknown value %q", raw)
	}
	*s = st
	return nil
}

// Status is the persisted record of one breaker. It is stored through the
// cache store at "circuit_breaker:<name>" so state survives process restarts
// and, when the cache is externally shared, is visible to sibling processes.
//
// Cross-process updates are read-modify-write, not atomic; concurrent
// processes can race on FailureCount. This is a documented limitation.
type Status struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	NextAttemptTime time.Time `json:"next_attempt_time"`
	ManualOverride  bool      `json:"manual_override"`
}

// newStatus returns a fresh CLOSED status for the named resource.
func newStatus(name string) Status {
	return Status{
		Name:  name,
		State: StateClosed,
	}
}

// validate checks invariants of a decoded status.
func (st Status) validate() error {
	if st.Name == "" {
		return fmt.Errorf("breaker status: name is empty")
	}
	if !st.State.IsValid() {
		return fmt.Errorf("breaker status: invalid state %q", st.State)
	}
	if st.FailureCount < 0 {
		return fmt.Errorf("breaker status: negative failure count %d", st.FailureCount)
	}
	return nil
}

// statusKey returns the cache key for a breaker's persisted status.
func statusKey(name string) string {
	return "circuit_breaker:" + name
}
