package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"edgepulse/internal/pkg/config"
)

// WorkerMetrics exposes Prometheus metrics for the refresh worker: the
// embedded configuration metrics plus per-pass execution metrics.
//
// Worker-specific series:
//   - worker_refresh_runs_total{status}: refresh passes by outcome
//   - worker_refresh_duration_seconds: refresh pass duration histogram
//   - worker_refresh_posts_total{result}: posts refreshed by result
//   - worker_refresh_last_success_timestamp: unix time of last clean pass
type WorkerMetrics struct {
	*config.ConfigMetrics

	RefreshRunsTotal            *prometheus.CounterVec
	RefreshDurationSeconds      prometheus.Histogram
	RefreshPostsTotal           *prometheus.CounterVec
	RefreshLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates and registers the worker metrics.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		RefreshRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_refresh_runs_total",
			Help: "Total engagement refresh passes by status (started/success/failure)",
		}, []string{"status"}),

		RefreshDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_refresh_duration_seconds",
			Help:    "Duration of engagement refresh passes in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240},
		}),

		RefreshPostsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_refresh_posts_total",
			Help: "Total tracked posts refreshed by result (ok/error)",
		}, []string{"result"}),

		RefreshLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_refresh_last_success_timestamp",
			Help: "Unix timestamp of the last refresh pass that completed without errors",
		}),
	}
}

// RecordRun increments the pass counter: "started", "success", or "failure".
func (m *WorkerMetrics) RecordRun(status string) {
	m.RefreshRunsTotal.WithLabelValues(status).Inc()
}

// RecordDuration observes a completed pass duration in seconds.
func (m *WorkerMetrics) RecordDuration(seconds float64) {
	m.RefreshDurationSeconds.Observe(seconds)
}

// RecordPostsRefreshed adds refreshed post counts by result: "ok" or "error".
func (m *WorkerMetrics) RecordPostsRefreshed(result string, count int) {
	m.RefreshPostsTotal.WithLabelValues(result).Add(float64(count))
}

// RecordLastSuccess marks now as the last clean pass.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.RefreshLastSuccessTimestamp.SetToCurrentTime()
}
