package post

import (
	"net/http"

	"edgepulse/internal/handler/http/respond"
)

// EngagementHandler serves GET /engagement: engagement counters for a post.
// Passing refresh=true bypasses both cache layers and reads from a live
// source, at the cost of a queued upstream call.
type EngagementHandler struct{ Svc Acquirer }

func (h EngagementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromQuery(r)
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	fetch := h.Svc.FetchEngagement
	if r.URL.Query().Get("refresh") == "true" {
		fetch = h.Svc.RefreshEngagement
	}

	snap, err := fetch(r.Context(), ref)
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toEngagementResponse(ref, snap))
}
