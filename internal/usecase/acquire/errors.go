package acquire

import (
	"context"
	"errors"
	"net/http"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/resilience/breaker"
	"edgepulse/internal/resilience/retry"
)

// benign reports whether an attempt error reflects the data rather than the
// source's health. Benign failures pass through the breaker as successes so
// a burst of lookups for deleted posts never opens a circuit.
func benign(err error) bool {
	return errors.Is(err, entity.ErrNotFound) ||
		errors.Is(err, entity.ErrNotSupported) ||
		errors.Is(err, entity.ErrInvalidInput) ||
		errors.Is(err, entity.ErrValidationFailed)
}

// errorKind buckets an attempt error for the rolling window. Success is the
// empty string.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, entity.ErrRateLimited) || retry.IsRateLimited(err):
		return "rate_limited"
	case errors.Is(err, entity.ErrNotFound):
		return "not_found"
	case errors.Is(err, entity.ErrNotSupported):
		return "not_supported"
	case errors.Is(err, breaker.ErrOpen) || errors.Is(err, breaker.ErrProbing):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "timeout"
	case isPermanentStatus(err):
		return "permanent"
	default:
		return "transient"
	}
}

// isPermanentStatus reports auth-style upstream rejections that will not
// heal on their own.
func isPermanentStatus(err error) bool {
	var httpErr *retry.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusUnauthorized ||
		httpErr.StatusCode == http.StatusForbidden ||
		httpErr.StatusCode == http.StatusBadRequest
}
