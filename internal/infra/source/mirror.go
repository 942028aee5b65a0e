package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
)

// MirrorSource reads posts from an RSS mirror of user timelines. Posts are
// located by their /status/<id> link inside the author's feed, so the
// adapter needs the username from the reference; ID-only references cannot
// be served. Mirrors expose no engagement counters, so counts stay zero.
type MirrorSource struct {
	cfg    Config
	client *http.Client
	parser *gofeed.Parser
}

// NewMirrorSource creates an RSS mirror adapter for the given config.
func NewMirrorSource(cfg Config) *MirrorSource {
	cfg.ApplyDefaults()
	client := newHTTPClient(cfg)

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = cfg.UserAgent

	return &MirrorSource{cfg: cfg, client: client, parser: parser}
}

// Name returns the configured instance name.
func (m *MirrorSource) Name() string { return m.cfg.Name }

// Kind returns KindRSS.
func (m *MirrorSource) Kind() Kind { return KindRSS }

// FetchPost locates the post in the author's timeline feed.
func (m *MirrorSource) FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error) {
	if err := entity.ValidatePostID(ref.ID); err != nil {
		return nil, err
	}
	if ref.Username == "" {
		return nil, fmt.Errorf("%w: %s needs a username to locate the timeline", entity.ErrNotSupported, m.cfg.Name)
	}

	feed, err := m.fetchFeed(ctx, ref.Username)
	if err != nil {
		return nil, err
	}

	marker := "/status/" + ref.ID
	for _, item := range feed.Items {
		if !strings.Contains(item.Link, marker) {
			continue
		}
		return m.itemToPost(feed, item, ref), nil
	}

	return nil, fmt.Errorf("%w: post %s not in %s's recent timeline", entity.ErrNotFound, ref.ID, ref.Username)
}

// FetchUser builds a profile from the timeline feed's metadata. Mirrors
// carry no follower counts, so only identity fields are populated.
func (m *MirrorSource) FetchUser(ctx context.Context, username string) (*entity.UserProfile, error) {
	if err := entity.ValidateUsername(username); err != nil {
		return nil, err
	}

	feed, err := m.fetchFeed(ctx, username)
	if err != nil {
		return nil, err
	}

	return &entity.UserProfile{
		Username:    username,
		DisplayName: displayNameFromFeedTitle(feed.Title, username),
		Source:      m.cfg.Name,
	}, nil
}

// fetchFeed retrieves and parses a user's timeline feed.
func (m *MirrorSource) fetchFeed(ctx context.Context, username string) (*gofeed.Feed, error) {
	endpoint := joinURL(m.cfg.BaseURL, username, "rss")
	if err := validateURL(endpoint, m.cfg.DenyPrivateIPs); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	feed, err := m.parser.ParseURLWithContext(endpoint, reqCtx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, mapFeedStatus(httpErr.StatusCode)
		}
		return nil, fmt.Errorf("fetch feed for %s: %w", username, err)
	}

	return feed, nil
}

// itemToPost converts a feed item into a post. The mirror renders content
// into the description; titles are a truncated copy used as a fallback.
func (m *MirrorSource) itemToPost(feed *gofeed.Feed, item *gofeed.Item, ref entity.PostRef) *entity.Post {
	content := strings.TrimSpace(item.Description)
	if content == "" {
		content = strings.TrimSpace(item.Title)
	}

	createdAt := time.Time{}
	if item.PublishedParsed != nil {
		createdAt = *item.PublishedParsed
	}

	return &entity.Post{
		ID:      ref.ID,
		URL:     canonicalPostURL(ref.Username, ref.ID),
		Content: content,
		Author: entity.Author{
			Username:    ref.Username,
			DisplayName: displayNameFromFeedTitle(feed.Title, ref.Username),
		},
		CreatedAt: createdAt,
		Source:    m.cfg.Name,
	}
}

// mapFeedStatus maps a feed HTTP error onto the shared taxonomy. gofeed
// hides the response, so the Retry-After hint is unavailable here.
func mapFeedStatus(statusCode int) error {
	switch statusCode {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: timeline feed missing", entity.ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: mirror throttled the request", entity.ErrRateLimited)
	default:
		return &retry.HTTPError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected feed status: %d", statusCode),
		}
	}
}

// displayNameFromFeedTitle extracts the display name from the mirror's
// "Name / @user" title convention.
func displayNameFromFeedTitle(title, username string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return username
	}
	if idx := strings.Index(title, " / @"); idx > 0 {
		return title[:idx]
	}
	return title
}
