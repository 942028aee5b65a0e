package config

import (
	"fmt"
	"time"
)

// ValidatePositiveDuration checks that a duration is strictly greater than
// zero. Timeouts, windows, and delays all share this floor: zero would mean
// "never" or "immediately" depending on the call site, and neither is ever
// what a configured value intends.
//
//	if err := config.ValidatePositiveDuration(*timeout); err != nil {
//	    return fmt.Errorf("invalid --timeout: %w", err)
//	}
func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}

// ValidateDurationRange checks that a duration sits inside [min, max], both
// ends inclusive. Source timeouts in sources.yaml go through this so a typo
// like "10m" where "10s" was meant gets rejected at load instead of
// stalling the fallback walk for ten minutes per source.
func ValidateDurationRange(d, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}

	if d < min {
		return fmt.Errorf("duration %v is below minimum %v", d, min)
	}
	if d > max {
		return fmt.Errorf("duration %v exceeds maximum %v", d, max)
	}
	return nil
}
