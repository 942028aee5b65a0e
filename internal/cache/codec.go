package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Corruption sentinels are serialized shapes that indicate a prior
// serialization bug rather than real data. They are rejected on write and
// silently deleted on read.
//
// Sentinel labels double as metric label values.
const (
	sentinelEmpty         = "empty"
	sentinelNull          = "null"
	sentinelUndefined     = "undefined"
	sentinelObjectString  = "object_string"
	sentinelFailedPayload = "serialization_failed"
	sentinelMalformed     = "malformed"
)

var (
	// ErrNilValue is returned by Encode when the input is the explicit
	// absence marker (a nil value).
	ErrNilValue = errors.New("cache: refusing to store nil value")

	// ErrSentinelValue is returned by Encode when serialization yields a
	// known corruption sentinel.
	ErrSentinelValue = errors.New("cache: value serializes to a corruption sentinel")
)

// failedPayload matches the error-object shape some upstream fallbacks emit
// instead of real data.
type failedPayload struct {
	Error string `json:"error"`
}

// Encode serializes a value for storage. It rejects nil input and any value
// whose serialized form matches a corruption sentinel, so garbage never
// reaches the store in the first place.
func Encode(value interface{}) (string, error) {
	if value == nil {
		return "", ErrNilValue
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("cache: marshal value: %w", err)
	}

	raw := string(data)
	if label, corrupted := DetectCorruption(raw); corrupted {
		return "", fmt.Errorf("%w (%s)", ErrSentinelValue, label)
	}

	return raw, nil
}

// DetectCorruption checks a raw serialized payload against the known
// corruption sentinels. It returns the matching sentinel's label and true
// when the payload is corrupt.
func DetectCorruption(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)

	switch {
	case trimmed == "":
		return sentinelEmpty, true
	case trimmed == "null" || trimmed == `"null"`:
		return sentinelNull, true
	case trimmed == "undefined" || trimmed == `"undefined"`:
		return sentinelUndefined, true
	}

	// A stringified object placeholder ("[object Object]" and friends),
	// bare or JSON-quoted.
	unquoted := trimmed
	if len(trimmed) >= 2 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			unquoted = s
		}
	}
	if strings.HasPrefix(unquoted, "[object") {
		return sentinelObjectString, true
	}

	// An error-object payload cached in place of data.
	if strings.HasPrefix(trimmed, "{") {
		var fp failedPayload
		if err := json.Unmarshal([]byte(trimmed), &fp); err == nil && fp.Error == "serialization_failed" {
			return sentinelFailedPayload, true
		}
	}

	return "", false
}
