package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule checks a five-field cron expression ("minute hour
// day-of-month month day-of-week") with the same parser the worker's
// scheduler uses, so anything accepted here is guaranteed to schedule.
//
//	ValidateCronSchedule("*/5 * * * *") // every five minutes (refresh pass)
//	ValidateCronSchedule("0 * * * *")   // hourly (window cleanup)
//	ValidateCronSchedule("bogus")       // error
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks an IANA timezone name ("UTC", "America/New_York",
// "Asia/Tokyo") by loading it through time.LoadLocation.
//
// A failure here usually means a typo, a UTC offset where a zone name was
// expected ("+09:00"), or a container image shipped without tzdata. All
// three are worth catching before the scheduler starts firing at the wrong
// local time.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}

	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// ValidateDuration checks that a duration sits inside [min, max], both ends
// inclusive. The error names the offending value and the bound it crossed,
// so the operator can fix the variable without reading code.
//
//	// REFRESH_TIMEOUT must leave headroom under the schedule interval
//	ValidateDuration(d, 30*time.Second, 30*time.Minute)
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}

	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}
	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}
	return nil
}

// ValidateIntRange checks that an integer sits inside [min, max], both ends
// inclusive.
//
//	ValidateIntRange(v, 1, 50)        // REFRESH_MAX_CONCURRENT
//	ValidateIntRange(v, 1024, 65535)  // WORKER_HEALTH_PORT
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}

	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}
	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}
	return nil
}

// ValidatePositiveDuration checks that a duration is strictly greater than
// zero. Zero and negative timeouts almost always mean a mangled environment
// value rather than an intentional "disabled" setting.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}
