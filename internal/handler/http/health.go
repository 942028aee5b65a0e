package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"edgepulse/internal/cache"
	"edgepulse/internal/handler/http/respond"
	"edgepulse/internal/resilience/breaker"
)

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string                 `json:"status"`    // "healthy", "degraded", or "unhealthy"
	Timestamp string                 `json:"timestamp"` // ISO 8601 format
	Checks    map[string]CheckStatus `json:"checks"`    // Status of each check item
	Version   string                 `json:"version"`   // Application version
}

// CheckStatus represents the status of a single health check.
type CheckStatus struct {
	Status  string                 `json:"status"`            // "healthy", "degraded", or "unhealthy"
	Message string                 `json:"message,omitempty"` // Optional status message
	Details map[string]interface{} `json:"details,omitempty"` // Optional additional details
}

// HealthHandler reports the health of the acquisition service: cache backend
// reachability, circuit breaker states, and inbound rate limiter size.
//
// A degraded cache or open breakers are warning states, not failures: the
// service keeps serving from the fallback map and the remaining sources.
// Only the loss of every source at once is reported as unhealthy.
type HealthHandler struct {
	Cache    *cache.Store
	Breakers *breaker.Registry
	Limiter  *IPRateLimiter
	Version  string
}

// ServeHTTP performs health checks and returns the service health status.
// Returns 200 OK for healthy and degraded, 503 Service Unavailable when no
// source can serve traffic.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	status := "healthy"

	if h.Cache != nil {
		cacheCheck := h.checkCache(ctx)
		checks["cache"] = cacheCheck
		if cacheCheck.Status == "degraded" {
			status = "degraded"
		}
	}

	if h.Breakers != nil {
		sourceCheck := h.checkSources(ctx)
		checks["sources"] = sourceCheck
		switch sourceCheck.Status {
		case "degraded":
			if status == "healthy" {
				status = "degraded"
			}
		case "unhealthy":
			status = "unhealthy"
		}
	}

	if h.Limiter != nil {
		checks["rate_limiter"] = CheckStatus{
			Status:  "healthy",
			Details: map[string]interface{}{"tracked_ips": h.Limiter.Size()},
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

// checkCache probes the cache backend. An unreachable backend is reported as
// degraded, never unhealthy: reads and writes keep working against the
// in-process fallback map.
func (h *HealthHandler) checkCache(ctx context.Context) CheckStatus {
	stats := h.Cache.Snapshot()
	details := map[string]interface{}{
		"degraded":         stats.Degraded,
		"fallback_entries": stats.FallbackEntries,
	}

	if err := h.Cache.Probe(ctx); err != nil {
		return CheckStatus{
			Status:  "degraded",
			Message: "backend unreachable, serving from fallback",
			Details: details,
		}
	}
	return CheckStatus{Status: "healthy", Details: details}
}

// checkSources reports circuit breaker states. Open breakers degrade the
// check; the check fails only when every known breaker is open, meaning no
// source can currently serve traffic.
func (h *HealthHandler) checkSources(ctx context.Context) CheckStatus {
	snapshot := h.Breakers.Snapshot(ctx)
	if len(snapshot) == 0 {
		return CheckStatus{Status: "healthy", Message: "no sources registered yet"}
	}

	open := 0
	states := make(map[string]interface{}, len(snapshot))
	for _, st := range snapshot {
		states[st.Name] = string(st.State)
		if st.State == breaker.StateOpen {
			open++
		}
	}

	details := map[string]interface{}{
		"breakers":   states,
		"open_count": open,
	}

	switch {
	case open == len(snapshot):
		return CheckStatus{
			Status:  "unhealthy",
			Message: "all source breakers open",
			Details: details,
		}
	case open > 0:
		return CheckStatus{
			Status:  "degraded",
			Message: "some source breakers open",
			Details: details,
		}
	default:
		return CheckStatus{Status: "healthy", Details: details}
	}
}

// ReadyHandler handles Kubernetes readiness probe requests. The service is
// ready as long as at least one source breaker would admit traffic; a
// degraded cache does not block readiness because the fallback map serves.
type ReadyHandler struct {
	Breakers *breaker.Registry
}

// ServeHTTP returns 200 OK if ready, or 503 Service Unavailable when every
// source breaker is open.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Breakers != nil {
		snapshot := h.Breakers.Snapshot(ctx)
		open := 0
		for _, st := range snapshot {
			if st.State == breaker.StateOpen {
				open++
			}
		}
		if len(snapshot) > 0 && open == len(snapshot) {
			http.Error(w, "not ready: all source breakers open", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		slog.Debug("ready: failed to write response", slog.Any("error", err))
	}
}

// LiveHandler handles Kubernetes liveness probe requests.
// It performs a lightweight check to verify the application is responsive.
type LiveHandler struct{}

// ServeHTTP performs a simple liveness check and always returns 200 OK
// if the application is running and able to respond.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		slog.Debug("alive: failed to write response", slog.Any("error", err))
	}
}
