package admin

import (
	"log/slog"
	"net/http"

	"edgepulse/internal/resilience/breaker"
)

// Register registers the admin handlers with the given mux. Every route is
// wrapped with authz, which must enforce the admin role.
func Register(mux *http.ServeMux, registry *breaker.Registry, queue QueueClearer, logger *slog.Logger, authz func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/breakers", authz(ListBreakersHandler{registry}))
	mux.Handle("POST /admin/breakers/", authz(BreakerActionHandler{registry}))
	mux.Handle("POST /admin/queue/clear", authz(ClearQueueHandler{Queue: queue, Logger: logger}))
}
