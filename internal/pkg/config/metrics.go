package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics is a per-component family of configuration health metrics:
// when configuration was last loaded, how many values failed validation,
// how many fell back to their defaults, and whether any fallback is in
// effect right now. Paired with the fail-open loaders, these are the only
// signal that a deploy is running on defaults instead of what was
// configured, so alert on {component}_config_fallback_active == 1.
//
// The component name prefixes every metric; the refresh worker exposes
// worker_config_load_timestamp, worker_config_validation_errors_total,
// worker_config_fallbacks_total, and worker_config_fallback_active.
type ConfigMetrics struct {
	// LoadTimestamp is the Unix time of the last configuration load.
	LoadTimestamp prometheus.Gauge

	// ValidationErrorsTotal counts rejected values, labeled by field
	// ("refresh_schedule", "timezone", "health_port").
	ValidationErrorsTotal *prometheus.CounterVec

	// FallbacksTotal counts applied defaults, labeled by field.
	FallbacksTotal *prometheus.CounterVec

	// FallbackActive is 1 while any field runs on its default because the
	// configured value was rejected, 0 otherwise.
	FallbackActive prometheus.Gauge

	componentName string
}

// NewConfigMetrics builds and registers the metric family for one
// component. Registration goes through promauto against the default
// registry, so calling this twice with the same component name panics;
// construct once per process and share the instance (the worker embeds it
// in WorkerMetrics).
func NewConfigMetrics(componentName string) *ConfigMetrics {
	return &ConfigMetrics{
		LoadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", componentName),
			Help: fmt.Sprintf("Unix timestamp of last %s configuration load", componentName),
		}),

		ValidationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration validation errors", componentName),
		}, []string{"field"}),

		FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration fallback operations", componentName),
		}, []string{"field"}),

		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", componentName),
			Help: fmt.Sprintf("1 if any %s configuration fallback is active, 0 otherwise", componentName),
		}),

		componentName: componentName,
	}
}

// RecordLoadTimestamp marks now as the latest configuration load. Call it
// once per load, after all fields have been read.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a rejected value for the given field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts an applied default for the given field.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive raises or clears the fallback gauge. Set it from the
// overall load result, not per field: true if any field fell back.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}
