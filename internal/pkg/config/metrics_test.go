package config

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// promauto registers against the default registry, so each test gets its
// own component name and the instances are never rebuilt.
var (
	recordMetrics   = NewConfigMetrics("cfgtest_record")
	fallbackMetrics = NewConfigMetrics("cfgtest_fallback")
	gaugeMetrics    = NewConfigMetrics("cfgtest_gauge")
	stampMetrics    = NewConfigMetrics("cfgtest_stamp")
)

func TestNewConfigMetrics(t *testing.T) {
	m := NewConfigMetrics("cfgtest_new")

	require.NotNil(t, m)
	assert.NotNil(t, m.LoadTimestamp)
	assert.NotNil(t, m.ValidationErrorsTotal)
	assert.NotNil(t, m.FallbacksTotal)
	assert.NotNil(t, m.FallbackActive)
	assert.Equal(t, "cfgtest_new", m.componentName)
}

func TestConfigMetrics_RecordValidationError(t *testing.T) {
	recordMetrics.RecordValidationError("refresh_schedule")
	recordMetrics.RecordValidationError("refresh_schedule")
	recordMetrics.RecordValidationError("timezone")

	schedule := recordMetrics.ValidationErrorsTotal.WithLabelValues("refresh_schedule")
	timezone := recordMetrics.ValidationErrorsTotal.WithLabelValues("timezone")
	assert.Equal(t, 2.0, testutil.ToFloat64(schedule))
	assert.Equal(t, 1.0, testutil.ToFloat64(timezone))
}

func TestConfigMetrics_RecordFallback(t *testing.T) {
	fallbackMetrics.RecordFallback("health_port")
	fallbackMetrics.RecordFallback("health_port")

	port := fallbackMetrics.FallbacksTotal.WithLabelValues("health_port")
	assert.Equal(t, 2.0, testutil.ToFloat64(port))
}

func TestConfigMetrics_SetFallbackActive(t *testing.T) {
	gaugeMetrics.SetFallbackActive(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(gaugeMetrics.FallbackActive))

	gaugeMetrics.SetFallbackActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(gaugeMetrics.FallbackActive))
}

func TestConfigMetrics_RecordLoadTimestamp(t *testing.T) {
	before := float64(time.Now().Unix())
	stampMetrics.RecordLoadTimestamp()
	after := float64(time.Now().Unix())

	stamp := testutil.ToFloat64(stampMetrics.LoadTimestamp)
	assert.GreaterOrEqual(t, stamp, before)
	assert.LessOrEqual(t, stamp, after+1)
}
