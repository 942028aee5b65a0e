package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestHealthServer() *HealthServer {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	return NewHealthServer("localhost:0", logger)
}

func TestHealthServer_Liveness(t *testing.T) {
	server := newTestHealthServer()

	rec := httptest.NewRecorder()
	server.handleLiveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHealthServer_ReadinessTransitions(t *testing.T) {
	server := newTestHealthServer()

	probe := func() (int, string) {
		rec := httptest.NewRecorder()
		server.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		var resp healthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return rec.Code, resp.Status
	}

	// Starts not ready.
	if code, status := probe(); code != http.StatusServiceUnavailable || status != "not ready" {
		t.Errorf("initial probe = %d %q, want 503 not ready", code, status)
	}

	server.SetReady(true)
	if code, status := probe(); code != http.StatusOK || status != "ok" {
		t.Errorf("ready probe = %d %q, want 200 ok", code, status)
	}

	server.SetReady(false)
	if code, _ := probe(); code != http.StatusServiceUnavailable {
		t.Errorf("unready probe = %d, want 503", code)
	}
}

func TestHealthServer_GracefulShutdown(t *testing.T) {
	server := newTestHealthServer()
	server.addr = "localhost:19095"

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	// Give the listener a moment to bind before cancelling.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			t.Errorf("Start returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown timeout")
	}
}

func TestNewHealthServer_StartsNotReady(t *testing.T) {
	server := newTestHealthServer()

	if server.isReady.Load() {
		t.Error("expected isReady false initially")
	}
}
