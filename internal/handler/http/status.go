package http

import (
	"context"
	"net/http"
	"time"

	"edgepulse/internal/handler/http/respond"
	"edgepulse/internal/usecase/acquire"
)

// StatusReporter is the slice of the orchestrator the status handler needs.
// *acquire.Service satisfies this interface.
type StatusReporter interface {
	Status(ctx context.Context) acquire.Status
}

// StatusResponse is the JSON shape of the orchestrator status endpoint.
type StatusResponse struct {
	PreferredSource string            `json:"preferred_source"`
	Sources         []SourceStatusDTO `json:"sources"`
	QueueDepth      int               `json:"queue_depth"`
	QueueDepths     map[string]int    `json:"queue_depths,omitempty"`
	CacheDegraded   bool              `json:"cache_degraded"`
	TrackedPosts    int               `json:"tracked_posts"`
}

// SourceStatusDTO describes one source in the fallback chain.
type SourceStatusDTO struct {
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	BreakerState   string  `json:"breaker_state"`
	FailureCount   int     `json:"failure_count"`
	ManualOverride bool    `json:"manual_override,omitempty"`
	CooldownUntil  string  `json:"cooldown_until,omitempty"`
	Attempts       int     `json:"attempts"`
	SuccessRate    float64 `json:"success_rate"`
	MeanLatencyMS  int64   `json:"mean_latency_ms"`
}

// StatusHandler serves GET /status: a read-only snapshot of source health,
// breaker states, cooldowns, queue depth, and cache degradation.
type StatusHandler struct {
	Svc StatusReporter
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := h.Svc.Status(r.Context())

	resp := StatusResponse{
		PreferredSource: st.PreferredSource,
		Sources:         make([]SourceStatusDTO, 0, len(st.Sources)),
		QueueDepth:      st.QueueDepth,
		QueueDepths:     st.QueueDepths,
		CacheDegraded:   st.CacheDegraded,
		TrackedPosts:    st.TrackedPosts,
	}

	for _, src := range st.Sources {
		dto := SourceStatusDTO{
			Name:           src.Name,
			Kind:           src.Kind,
			BreakerState:   string(src.BreakerState),
			FailureCount:   src.FailureCount,
			ManualOverride: src.ManualOverride,
			Attempts:       src.Stats.Attempts,
			SuccessRate:    src.Stats.SuccessRate,
			MeanLatencyMS:  src.Stats.MeanLatency.Milliseconds(),
		}
		if !src.CooldownUntil.IsZero() {
			dto.CooldownUntil = src.CooldownUntil.UTC().Format(time.RFC3339)
		}
		resp.Sources = append(resp.Sources, dto)
	}

	respond.JSON(w, http.StatusOK, resp)
}
