package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"round trip", WithRequestID(context.Background(), "req-abc"), "req-abc"},
		{"missing", context.Background(), ""},
		{"wrong value type", context.WithValue(context.Background(), RequestIDKey, 7), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromContext(tt.ctx))
		})
	}
}

func TestMiddleware_PropagatesClientID(t *testing.T) {
	const clientID = "client-supplied-id"

	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/post?id=1", nil)
	req.Header.Set(RequestIDHeader, clientID)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	// The client's ID rides through context and is echoed back.
	assert.Equal(t, clientID, seen)
	assert.Equal(t, clientID, rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_GeneratesUUIDWhenAbsent(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/post?id=1", nil))

	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "generated ID should be a UUID")
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_UniquePerRequest(t *testing.T) {
	ids := make(map[string]bool)
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids[FromContext(r.Context())] = true
	}))

	for i := 0; i < 20; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	}

	assert.Len(t, ids, 20)
}

func TestRequestIDHeaderName(t *testing.T) {
	// Logged request IDs and the echoed header must agree on the name
	// clients are told to send.
	assert.Equal(t, "X-Request-ID", RequestIDHeader)
}
