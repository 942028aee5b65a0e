package worker

import (
	"fmt"
	"log/slog"
	"time"

	"edgepulse/internal/pkg/config"
)

// WorkerConfig controls the refresh worker: the cron schedule for the
// engagement refresh pass, how many posts refresh concurrently, and the
// health server port.
//
// Loading is fail-open: an invalid environment value falls back to the
// default with a warning and a metric, never a failed boot. A worker that
// refreshes on the default cadence beats one that refuses to start.
type WorkerConfig struct {
	// RefreshSchedule is the cron expression for the engagement refresh
	// pass. Default: "*/5 * * * *" (every five minutes).
	RefreshSchedule string

	// Timezone is the IANA timezone the scheduler runs in. Default: "UTC".
	Timezone string

	// RefreshMaxConcurrent bounds how many tracked posts refresh at once.
	// Range: 1-50. Default: 8.
	RefreshMaxConcurrent int

	// RefreshTimeout bounds a single refresh pass. Default: 4 minutes,
	// slightly under the default schedule interval so passes never overlap.
	RefreshTimeout time.Duration

	// HealthPort is the health check server port. Default: 9091.
	HealthPort int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		RefreshSchedule:      "*/5 * * * *",
		Timezone:             "UTC",
		RefreshMaxConcurrent: 8,
		RefreshTimeout:       4 * time.Minute,
		HealthPort:           9091,
	}
}

// Validate checks all fields, collecting every violation rather than
// stopping at the first.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.RefreshSchedule); err != nil {
		errs = append(errs, fmt.Errorf("refresh schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.RefreshMaxConcurrent, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("refresh max concurrent: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.RefreshTimeout); err != nil {
		errs = append(errs, fmt.Errorf("refresh timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from the environment
// with per-field validation and fallback to defaults.
//
// Environment variables:
//   - REFRESH_SCHEDULE: cron expression (default "*/5 * * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default "UTC")
//   - REFRESH_MAX_CONCURRENT: integer 1-50 (default 8)
//   - REFRESH_TIMEOUT: duration, 30s-30m (default 4m)
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default 9091)
//
// Each fallback is logged and counted on the worker config metrics. The
// returned error is always nil; the signature keeps the call site honest
// about the possibility.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	recordFallback := func(field string, warnings []string) {
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field)
		for _, warning := range warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("REFRESH_SCHEDULE", cfg.RefreshSchedule, config.ValidateCronSchedule)
	cfg.RefreshSchedule = result.Value.(string)
	if result.FallbackApplied {
		recordFallback("refresh_schedule", result.Warnings)
	}

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		recordFallback("timezone", result.Warnings)
	}

	result = config.LoadEnvInt("REFRESH_MAX_CONCURRENT", cfg.RefreshMaxConcurrent, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.RefreshMaxConcurrent = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("refresh_max_concurrent", result.Warnings)
	}

	result = config.LoadEnvDuration("REFRESH_TIMEOUT", cfg.RefreshTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 30*time.Second, 30*time.Minute)
	})
	cfg.RefreshTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		recordFallback("refresh_timeout", result.Warnings)
	}

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("health_port", result.Warnings)
	}

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
