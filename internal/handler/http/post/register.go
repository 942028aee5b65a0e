package post

import "net/http"

// Register registers the public lookup handlers with the given mux.
func Register(mux *http.ServeMux, svc Acquirer) {
	mux.Handle("GET /post", GetHandler{svc})
	mux.Handle("GET /engagement", EngagementHandler{svc})
	mux.Handle("GET /user", UserHandler{svc})
}
