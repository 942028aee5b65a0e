package admin

import (
	"log/slog"
	"net/http"

	"edgepulse/internal/handler/http/requestid"
	"edgepulse/internal/handler/http/respond"
)

// QueueClearer is the slice of the request queue the admin surface needs.
// *requestqueue.Queue satisfies this interface.
type QueueClearer interface {
	Clear() int
}

// ClearQueueHandler serves POST /admin/queue/clear: rejects every pending
// request and reports how many were dropped. Used when a stale backlog is
// holding the rate limit window hostage.
type ClearQueueHandler struct {
	Queue  QueueClearer
	Logger *slog.Logger
}

func (h ClearQueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cleared := h.Queue.Clear()

	if h.Logger != nil {
		h.Logger.Warn("request queue cleared by operator",
			slog.String("request_id", requestid.FromContext(r.Context())),
			slog.Int("cleared", cleared))
	}

	respond.JSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}
