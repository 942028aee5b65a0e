// Package admin provides the operator endpoints: breaker inspection and
// manual control, and queue clearing. All routes require an admin token.
package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"edgepulse/internal/handler/http/pathutil"
	"edgepulse/internal/handler/http/respond"
	"edgepulse/internal/resilience/breaker"
)

const breakersPrefix = "/admin/breakers/"

// ListBreakersHandler serves GET /admin/breakers: a snapshot of every known
// breaker, sorted by name.
type ListBreakersHandler struct {
	Registry *breaker.Registry
}

func (h ListBreakersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"breakers": h.Registry.Snapshot(r.Context()),
	})
}

// overrideRequest is the body of POST /admin/breakers/{name}/override.
type overrideRequest struct {
	Enabled bool `json:"enabled"`
}

// BreakerActionHandler serves POST /admin/breakers/{name}/override and
// POST /admin/breakers/{name}/reset. While the override is enabled the
// breaker never short-circuits calls; reset returns the breaker to closed
// with a zeroed failure count.
type BreakerActionHandler struct {
	Registry *breaker.Registry
}

func (h BreakerActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if name, err := pathutil.ExtractSegment(r.URL.Path, breakersPrefix, "/override"); err == nil {
		h.override(w, r, name)
		return
	}
	if name, err := pathutil.ExtractSegment(r.URL.Path, breakersPrefix, "/reset"); err == nil {
		h.reset(w, r, name)
		return
	}
	respond.Error(w, http.StatusNotFound, "not found")
}

func (h BreakerActionHandler) override(w http.ResponseWriter, r *http.Request, name string) {
	b, ok := h.Registry.Lookup(name)
	if !ok {
		respond.Error(w, http.StatusNotFound, "unknown breaker")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respond.Error(w, http.StatusBadRequest, "request body is required")
			return
		}
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b.SetManualOverride(r.Context(), req.Enabled)
	respond.JSON(w, http.StatusOK, b.Status(r.Context()))
}

func (h BreakerActionHandler) reset(w http.ResponseWriter, r *http.Request, name string) {
	b, ok := h.Registry.Lookup(name)
	if !ok {
		respond.Error(w, http.StatusNotFound, "unknown breaker")
		return
	}

	b.Reset(r.Context())
	respond.JSON(w, http.StatusOK, b.Status(r.Context()))
}
