// Package config provides fail-open environment loading for component
// configuration, plus the validators and Prometheus metrics that go with
// it.
//
// Every loader in this package returns a usable value. A missing variable
// silently means the default; a variable that is present but unparseable or
// rejected by its validator also means the default, but with a warning and
// a raised fallback flag so the operator can see the deploy is running on
// known-good settings instead of what was configured. A worker that
// refreshes on the default cadence beats one stuck in a crash loop over a
// typo in REFRESH_SCHEDULE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is what every loader returns: the effective value, the
// warnings produced while loading it, and whether the default had to stand
// in for a rejected environment value.
//
// Value is an interface{} so one result type serves the string, int, and
// duration loaders; callers assert to the type they asked for:
//
//	result := LoadEnvDuration("REFRESH_TIMEOUT", 4*time.Minute, ValidatePositiveDuration)
//	timeout := result.Value.(time.Duration)
//	if result.FallbackApplied {
//	    for _, w := range result.Warnings {
//	        logger.Warn("configuration fallback applied", slog.String("warning", w))
//	    }
//	}
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// accepted wraps a value that passed loading.
func accepted(v interface{}) ConfigLoadResult {
	return ConfigLoadResult{Value: v}
}

// fellBack wraps the default plus a warning naming the rejected environment
// value and why it was rejected. The warning format is stable; operators
// grep logs for it.
func fellBack(envKey, raw string, reason error, defaultValue interface{}) ConfigLoadResult {
	return ConfigLoadResult{
		Value: defaultValue,
		Warnings: []string{fmt.Sprintf(
			"Invalid %s='%s': %v, falling back to default '%v'",
			envKey, raw, reason, defaultValue,
		)},
		FallbackApplied: true,
	}
}

// LoadEnvWithFallback loads a string from envKey and runs it through the
// validator. An unset or empty variable uses the default without a warning;
// a value the validator rejects uses the default with a warning. A nil
// validator accepts anything.
//
// Example, the worker's refresh schedule:
//
//	result := LoadEnvWithFallback("REFRESH_SCHEDULE", "*/5 * * * *", ValidateCronSchedule)
//	schedule := result.Value.(string)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return accepted(defaultValue)
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return fellBack(envKey, value, err, defaultValue)
		}
	}
	return accepted(value)
}

// LoadEnvDuration loads a Go duration string ("30s", "4m", "1h30m") from
// envKey, parses it, and validates the parsed duration. Parse failures and
// validation failures both fall back to the default with a warning; an
// unset variable uses the default silently.
//
// Example, bounding a refresh pass to less than its schedule interval:
//
//	result := LoadEnvDuration("REFRESH_TIMEOUT", 4*time.Minute, func(d time.Duration) error {
//	    return ValidateDuration(d, 30*time.Second, 30*time.Minute)
//	})
//	timeout := result.Value.(time.Duration)
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return accepted(defaultValue)
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fellBack(envKey, raw, err, defaultValue)
	}

	if validator != nil {
		if err := validator(d); err != nil {
			return fellBack(envKey, raw, err, defaultValue)
		}
	}
	return accepted(d)
}

// LoadEnvInt loads an integer from envKey. Values that are not plain base-10
// integers, and values the validator rejects, fall back to the default with
// a warning; an unset variable uses the default silently.
//
// Example, the worker's concurrency bound:
//
//	result := LoadEnvInt("REFRESH_MAX_CONCURRENT", 8, func(v int) error {
//	    return ValidateIntRange(v, 1, 50)
//	})
//	maxConcurrent := result.Value.(int)
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return accepted(defaultValue)
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fellBack(envKey, raw, fmt.Errorf("invalid integer format"), defaultValue)
	}

	if validator != nil {
		if err := validator(n); err != nil {
			return fellBack(envKey, raw, err, defaultValue)
		}
	}
	return accepted(n)
}
