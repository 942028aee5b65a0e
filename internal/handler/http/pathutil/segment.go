package pathutil

import (
	"errors"
	"strings"
)

// ErrInvalidSegment is returned when the expected path segment is missing or empty.
var ErrInvalidSegment = errors.New("invalid path segment")

// ExtractSegment extracts a single path segment between a prefix and an
// optional suffix. It is used by the admin routes to pull the breaker name
// out of paths like /admin/breakers/twitter/reset.
//
// Example:
//
//	name, err := ExtractSegment("/admin/breakers/twitter/reset", "/admin/breakers/", "/reset")
//	// Returns: "twitter", nil
func ExtractSegment(path, prefix, suffix string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", ErrInvalidSegment
	}
	seg := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		if !strings.HasSuffix(seg, suffix) {
			return "", ErrInvalidSegment
		}
		seg = strings.TrimSuffix(seg, suffix)
	}
	if seg == "" || strings.Contains(seg, "/") {
		return "", ErrInvalidSegment
	}
	return seg, nil
}
