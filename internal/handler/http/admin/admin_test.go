package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edgepulse/internal/resilience/breaker"
)

func newRegistry(t *testing.T) *breaker.Registry {
	t.Helper()
	reg, err := breaker.NewRegistry(breaker.RegistryConfig{
		Defaults: breaker.Config{
			FailureThreshold: 1,
			RecoveryTimeout:  time.Minute,
			HalfOpenMaxCalls: 1,
		},
	}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func failOnce(t *testing.T, reg *breaker.Registry, name string) {
	t.Helper()
	_, err := reg.Get(name).Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("upstream down")
	})
	if err == nil {
		t.Fatal("expected failure")
	}
}

func TestListBreakersHandler(t *testing.T) {
	reg := newRegistry(t)
	reg.Get("twitter")
	failOnce(t, reg, "nitter")

	rec := httptest.NewRecorder()
	ListBreakersHandler{reg}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/breakers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp struct {
		Breakers []breaker.Status `json:"breakers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Breakers) != 2 {
		t.Fatalf("breakers = %d, want 2", len(resp.Breakers))
	}
	// Snapshot sorts by name.
	if resp.Breakers[0].Name != "nitter" || resp.Breakers[0].State != breaker.StateOpen {
		t.Errorf("first = %+v", resp.Breakers[0])
	}
	if resp.Breakers[1].Name != "twitter" || resp.Breakers[1].State != breaker.StateClosed {
		t.Errorf("second = %+v", resp.Breakers[1])
	}
}

func TestBreakerActionHandler_Override(t *testing.T) {
	reg := newRegistry(t)
	reg.Get("twitter")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/breakers/twitter/override",
		strings.NewReader(`{"enabled":true}`))
	BreakerActionHandler{reg}.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}

	st := reg.Get("twitter").Status(context.Background())
	if !st.ManualOverride {
		t.Error("manual override not set")
	}

	// An overridden breaker admits calls even after failures open it.
	failOnce(t, reg, "twitter")
	_, err := reg.Get("twitter").Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Errorf("overridden breaker denied call: %v", err)
	}
}

func TestBreakerActionHandler_OverrideRequiresBody(t *testing.T) {
	reg := newRegistry(t)
	reg.Get("twitter")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/breakers/twitter/override", nil)
	BreakerActionHandler{reg}.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", rec.Code)
	}
}

func TestBreakerActionHandler_Reset(t *testing.T) {
	reg := newRegistry(t)
	failOnce(t, reg, "twitter")
	if reg.Get("twitter").State(context.Background()) != breaker.StateOpen {
		t.Fatal("breaker should be open")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/breakers/twitter/reset", nil)
	BreakerActionHandler{reg}.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	st := reg.Get("twitter").Status(context.Background())
	if st.State != breaker.StateClosed || st.FailureCount != 0 {
		t.Errorf("status = %+v, want closed with zero failures", st)
	}
}

func TestBreakerActionHandler_UnknownBreaker(t *testing.T) {
	reg := newRegistry(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/breakers/nope/reset", nil)
	BreakerActionHandler{reg}.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}

func TestBreakerActionHandler_UnknownAction(t *testing.T) {
	reg := newRegistry(t)
	reg.Get("twitter")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/breakers/twitter/explode", nil)
	BreakerActionHandler{reg}.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}

type fakeQueue struct{ cleared int }

func (f *fakeQueue) Clear() int { return f.cleared }

func TestClearQueueHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearQueueHandler{Queue: &fakeQueue{cleared: 7}}.ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/admin/queue/clear", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["cleared"] != 7 {
		t.Errorf("cleared = %d, want 7", resp["cleared"])
	}
}
