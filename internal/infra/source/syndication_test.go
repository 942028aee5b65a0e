package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/infra/source"
	"edgepulse/internal/resilience/retry"
)

// testConfig returns an adapter config pointing at a local test server.
// Private IP denial is off so httptest servers are reachable.
func testConfig(name string, kind source.Kind, baseURL string) source.Config {
	cfg := source.DefaultConfig(name, kind)
	cfg.BaseURL = baseURL
	cfg.DenyPrivateIPs = false
	cfg.Timeout = 5 * time.Second
	return cfg
}

const widgetPayload = `{
	"id_str": "1234567890",
	"text": "just shipped the thing",
	"created_at": "2026-08-01T12:30:00.000Z",
	"favorite_count": 321,
	"retweet_count": 45,
	"conversation_count": 12,
	"user": {
		"screen_name": "builder",
		"name": "The Builder",
		"verified": false,
		"is_blue_verified": true,
		"followers_count": 9001,
		"friends_count": 250
	}
}`

func TestSyndicationSource_FetchPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweet-result" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("id"); got != "1234567890" {
			t.Errorf("query id = %q, want 1234567890", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(widgetPayload))
	}))
	defer server.Close()

	src := source.NewSyndicationSource(testConfig("syndication", source.KindAPI, server.URL))

	post, err := src.FetchPost(context.Background(), entity.PostRef{ID: "1234567890"})
	if err != nil {
		t.Fatalf("FetchPost() error = %v", err)
	}

	if post.ID != "1234567890" {
		t.Errorf("ID = %q, want 1234567890", post.ID)
	}
	if post.Content != "just shipped the thing" {
		t.Errorf("Content = %q", post.Content)
	}
	if post.Author.Username != "builder" || post.Author.DisplayName != "The Builder" {
		t.Errorf("Author = %+v", post.Author)
	}
	if !post.Author.Verified {
		t.Error("expected blue-verified author marked verified")
	}
	if post.Engagement.Likes != 321 || post.Engagement.Reposts != 45 || post.Engagement.Replies != 12 {
		t.Errorf("Engagement = %+v", post.Engagement)
	}
	if post.Source != "syndication" {
		t.Errorf("Source = %q, want syndication", post.Source)
	}
	if post.URL != "https://x.com/builder/status/1234567890" {
		t.Errorf("URL = %q", post.URL)
	}
	want := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	if !post.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", post.CreatedAt, want)
	}
}

func TestSyndicationSource_FetchPost_InvalidID(t *testing.T) {
	src := source.NewSyndicationSource(testConfig("syndication", source.KindAPI, "http://example.com"))

	if _, err := src.FetchPost(context.Background(), entity.PostRef{ID: "not-a-number"}); err == nil {
		t.Error("expected validation error for non-numeric ID")
	}
}

func TestSyndicationSource_FetchPost_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		retryAfter string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "404 maps to not found",
			statusCode: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, entity.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			},
		},
		{
			name:       "429 maps to rate limited with hint",
			statusCode: http.StatusTooManyRequests,
			retryAfter: "120",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, entity.ErrRateLimited) {
					t.Errorf("expected ErrRateLimited, got %v", err)
				}
				hint, ok := retry.RetryAfterHint(err)
				if !ok || hint != 2*time.Minute {
					t.Errorf("RetryAfterHint = %v %v, want 2m true", hint, ok)
				}
			},
		},
		{
			name:       "500 surfaces as retryable HTTP error",
			statusCode: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var httpErr *retry.HTTPError
				if !errors.As(err, &httpErr) || httpErr.StatusCode != 500 {
					t.Errorf("expected HTTPError 500, got %v", err)
				}
				if !retry.IsRetryable(err) {
					t.Error("expected 500 classified retryable")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			src := source.NewSyndicationSource(testConfig("syndication", source.KindAPI, server.URL))
			_, err := src.FetchPost(context.Background(), entity.PostRef{ID: "42"})
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestSyndicationSource_FetchPost_EmptyPayloadIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	src := source.NewSyndicationSource(testConfig("syndication", source.KindAPI, server.URL))
	_, err := src.FetchPost(context.Background(), entity.PostRef{ID: "42"})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted post, got %v", err)
	}
}

func TestSyndicationSource_FetchUser_NotSupported(t *testing.T) {
	src := source.NewSyndicationSource(testConfig("syndication", source.KindAPI, "http://example.com"))
	_, err := src.FetchUser(context.Background(), "builder")
	if !errors.Is(err, entity.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}
