package http

import (
	"net/http"

	"edgepulse/internal/handler/http/respond"
)

// InputValidation returns middleware that validates and limits request inputs.
// It enforces limits on:
// - Authorization header size (8KB)
// - URI length (4KB, post URLs arrive as query parameters)
// Body size is capped separately by LimitRequestBody.
func InputValidation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// JWT tokens typically < 1KB, but allow headroom.
			if len(r.Header.Get("Authorization")) > 8192 {
				respond.Error(w, http.StatusBadRequest, "authorization header too large")
				return
			}

			// Post URLs ride in the query string, so limit the full URI
			// rather than just the path.
			if len(r.URL.RequestURI()) > 4096 {
				respond.Error(w, http.StatusRequestURITooLong, "URI too long")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
