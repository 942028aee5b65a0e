package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrRateLimited indicates an upstream rejected the call because its
	// request quota is exhausted. Treated as retryable after a cooldown.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrNotSupported indicates a source adapter cannot serve the requested
	// verb (e.g. a timeline mirror asked for an arbitrary user profile).
	ErrNotSupported = errors.New("operation not supported by source")

	// ErrSourceUnavailable indicates a single source is temporarily down
	// (circuit open, cooldown active, or transient upstream failure).
	ErrSourceUnavailable = errors.New("source temporarily unavailable")

	// ErrNoSourceAvailable indicates every configured source failed for a
	// request. Callers should treat it as "no data right now", not fatal.
	ErrNoSourceAvailable = errors.New("no source available")

	// ErrPermanentFailure indicates an upstream rejected the request in a
	// way that will not heal on its own (auth failure, malformed request).
	ErrPermanentFailure = errors.New("permanent upstream failure")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
