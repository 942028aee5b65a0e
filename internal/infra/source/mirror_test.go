package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/infra/source"
)

const timelineFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>The Builder / @builder</title>
	<link>https://mirror.example/builder</link>
	<description>Building things in public.</description>
	<item>
		<title>just shipped the thing</title>
		<link>https://mirror.example/builder/status/1234567890</link>
		<description>just shipped the thing</description>
		<pubDate>Sat, 01 Aug 2026 12:30:00 GMT</pubDate>
	</item>
	<item>
		<title>older post</title>
		<link>https://mirror.example/builder/status/1111111111</link>
		<description>older post body</description>
		<pubDate>Fri, 31 Jul 2026 08:00:00 GMT</pubDate>
	</item>
</channel>
</rss>`

func mirrorServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/builder/rss" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(timelineFeed))
	}))
}

func TestMirrorSource_FetchPost(t *testing.T) {
	server := mirrorServer(t)
	defer server.Close()

	src := source.NewMirrorSource(testConfig("mirror", source.KindRSS, server.URL))

	post, err := src.FetchPost(context.Background(), entity.PostRef{ID: "1234567890", Username: "builder"})
	if err != nil {
		t.Fatalf("FetchPost() error = %v", err)
	}

	if post.ID != "1234567890" {
		t.Errorf("ID = %q", post.ID)
	}
	if post.Content != "just shipped the thing" {
		t.Errorf("Content = %q", post.Content)
	}
	if post.Author.Username != "builder" || post.Author.DisplayName != "The Builder" {
		t.Errorf("Author = %+v", post.Author)
	}
	if post.CreatedAt.IsZero() {
		t.Error("expected CreatedAt from pubDate")
	}
	if post.Engagement != (entity.Engagement{}) {
		t.Errorf("mirrors carry no counts, got %+v", post.Engagement)
	}
	if post.Source != "mirror" {
		t.Errorf("Source = %q", post.Source)
	}
}

func TestMirrorSource_FetchPost_NotInTimeline(t *testing.T) {
	server := mirrorServer(t)
	defer server.Close()

	src := source.NewMirrorSource(testConfig("mirror", source.KindRSS, server.URL))

	_, err := src.FetchPost(context.Background(), entity.PostRef{ID: "999", Username: "builder"})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMirrorSource_FetchPost_NeedsUsername(t *testing.T) {
	src := source.NewMirrorSource(testConfig("mirror", source.KindRSS, "http://example.com"))

	_, err := src.FetchPost(context.Background(), entity.PostRef{ID: "1234567890"})
	if !errors.Is(err, entity.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported for ID-only ref, got %v", err)
	}
}

func TestMirrorSource_FetchPost_MissingFeed(t *testing.T) {
	server := mirrorServer(t)
	defer server.Close()

	src := source.NewMirrorSource(testConfig("mirror", source.KindRSS, server.URL))

	_, err := src.FetchPost(context.Background(), entity.PostRef{ID: "1234567890", Username: "nobody"})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing feed, got %v", err)
	}
}

func TestMirrorSource_FetchUser(t *testing.T) {
	server := mirrorServer(t)
	defer server.Close()

	src := source.NewMirrorSource(testConfig("mirror", source.KindRSS, server.URL))

	profile, err := src.FetchUser(context.Background(), "builder")
	if err != nil {
		t.Fatalf("FetchUser() error = %v", err)
	}

	if profile.Username != "builder" {
		t.Errorf("Username = %q", profile.Username)
	}
	if profile.DisplayName != "The Builder" {
		t.Errorf("DisplayName = %q", profile.DisplayName)
	}
	if profile.Source != "mirror" {
		t.Errorf("Source = %q", profile.Source)
	}
}

func TestMirrorSource_FetchUser_InvalidUsername(t *testing.T) {
	src := source.NewMirrorSource(testConfig("mirror", source.KindRSS, "http://example.com"))

	if _, err := src.FetchUser(context.Background(), "not a handle!"); err == nil {
		t.Error("expected validation error")
	}
}
