package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"edgepulse/internal/handler/http/respond"
)

// Timeout returns middleware that bounds each request to the given
// duration. On expiry the client gets a 504 and the request context is
// canceled, so the acquisition stack below abandons its source calls
// instead of finishing work nobody will read.
//
// The handler goroutine may outlive the deadline; the guarded writer turns
// its late writes into no-ops so they never race the timeout response.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()

			gw := &guardedWriter{inner: w}
			done := make(chan struct{})

			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if gw.expire() {
					respond.Error(w, http.StatusGatewayTimeout, "request timeout")
				}
			}
		})
	}
}

// guardedWriter serializes the handler goroutine and the timeout path.
// Exactly one of them produces the response: whoever gets there first.
type guardedWriter struct {
	inner   http.ResponseWriter
	mu      sync.Mutex
	expired bool
	wrote   bool
}

func (g *guardedWriter) Header() http.Header {
	return g.inner.Header()
}

func (g *guardedWriter) WriteHeader(statusCode int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.expired || g.wrote {
		return
	}
	g.wrote = true
	g.inner.WriteHeader(statusCode)
}

func (g *guardedWriter) Write(data []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !g.wrote {
		g.wrote = true
		g.inner.WriteHeader(http.StatusOK)
	}
	return g.inner.Write(data)
}

// expire marks the writer dead and reports whether the timeout response
// still needs writing, i.e. the handler had not started one.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expired = true
	return !g.wrote
}
