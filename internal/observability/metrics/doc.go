// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Cache store metrics (operations, corruptions, degraded mode)
//   - Circuit breaker metrics (state, transitions, short circuits)
//   - Request queue metrics (depth, wait time, retries)
//   - Source acquisition metrics (attempts, latency, demotions)
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "edgepulse/internal/observability/metrics"
//
//	func fetchFromSource(source string) {
//	    start := time.Now()
//	    // ... call upstream ...
//
//	    metrics.RecordSourceAttempt(source, "post", "success", time.Since(start))
//	}
package metrics
