package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edgepulse/internal/resilience/breaker"
	"edgepulse/internal/usecase/acquire"
)

type fakeStatusReporter struct{ status acquire.Status }

func (f fakeStatusReporter) Status(ctx context.Context) acquire.Status { return f.status }

func TestStatusHandler(t *testing.T) {
	cooldown := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := fakeStatusReporter{status: acquire.Status{
		PreferredSource: "nitter",
		Sources: []acquire.SourceStatus{
			{
				Name:         "twitter",
				Kind:         "api",
				BreakerState: breaker.StateClosed,
				CooldownUntil: cooldown,
				Stats: acquire.SourceStats{
					Attempts:    10,
					Successes:   4,
					SuccessRate: 0.4,
					MeanLatency: 250 * time.Millisecond,
				},
			},
			{
				Name:         "nitter",
				Kind:         "scraper",
				BreakerState: breaker.StateOpen,
				FailureCount: 5,
			},
		},
		QueueDepth:    3,
		QueueDepths:   map[string]int{"fetch_post": 3},
		CacheDegraded: true,
		TrackedPosts:  12,
	}}

	rec := httptest.NewRecorder()
	StatusHandler{fake}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.PreferredSource != "nitter" || !resp.CacheDegraded || resp.TrackedPosts != 12 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(resp.Sources))
	}

	twitter := resp.Sources[0]
	if twitter.BreakerState != "CLOSED" || twitter.SuccessRate != 0.4 || twitter.MeanLatencyMS != 250 {
		t.Errorf("twitter = %+v", twitter)
	}
	if twitter.CooldownUntil != "2025-06-01T12:00:00Z" {
		t.Errorf("cooldown = %q", twitter.CooldownUntil)
	}
	if resp.Sources[1].BreakerState != "OPEN" || resp.Sources[1].FailureCount != 5 {
		t.Errorf("nitter = %+v", resp.Sources[1])
	}
}
