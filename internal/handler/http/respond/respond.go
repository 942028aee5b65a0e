// Package respond writes JSON HTTP responses and maps domain errors onto
// status codes without leaking internal details to clients.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"edgepulse/internal/domain/entity"
)

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes a JSON error response with the given status code and message.
// The message is sent to the client verbatim, so callers must pass
// client-safe text only.
func Error(w http.ResponseWriter, code int, message string) {
	JSON(w, code, map[string]string{"error": message})
}

// StatusCode maps a domain error onto the HTTP status it should produce.
//
//   - validation failures reject the request (400)
//   - a missing post or user is the client's data, not our fault (404)
//   - upstream throttling surfaces as throttling (429)
//   - exhaustion of every source is an upstream failure (502)
//   - a single unavailable source or open circuit is transient (503)
//
// Anything unrecognized is an internal error (500).
func StatusCode(err error) int {
	var validationErr *entity.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, entity.ErrNoSourceAvailable),
		errors.Is(err, entity.ErrPermanentFailure):
		return http.StatusBadGateway
	case errors.Is(err, entity.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the client-facing message for a mapped status.
// Taxonomy errors get stable descriptive text; everything else gets a
// generic message so internals never leak.
func clientMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusNotFound:
		return "not found"
	case http.StatusTooManyRequests:
		return "rate limited, retry later"
	case http.StatusBadGateway:
		return "no upstream source available"
	case http.StatusServiceUnavailable:
		return "upstream temporarily unavailable"
	default:
		return "internal server error"
	}
}

// DomainError maps err through the error taxonomy and writes the response.
// Validation errors are returned verbatim (they describe the client's
// input); everything else gets the taxonomy's stable message, and internal
// errors are additionally logged with sensitive values masked.
func DomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	code := StatusCode(err)

	var validationErr *entity.ValidationError
	if code == http.StatusBadRequest && errors.As(err, &validationErr) {
		Error(w, code, validationErr.Error())
		return
	}

	if code >= 500 {
		slog.Default().Error("request failed",
			slog.Int("code", code),
			slog.String("error", Sanitize(err)))
	}
	Error(w, code, clientMessage(code))
}
