package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"edgepulse/internal/domain/entity"
)

// SyndicationSource fetches post data from the provider's JSON widget API.
// The endpoint serves a single post by numeric ID without authentication,
// which makes it the cheapest and most reliable provider in the chain.
type SyndicationSource struct {
	cfg    Config
	client *http.Client
}

// NewSyndicationSource creates a syndication adapter for the given config.
func NewSyndicationSource(cfg Config) *SyndicationSource {
	cfg.ApplyDefaults()
	return &SyndicationSource{cfg: cfg, client: newHTTPClient(cfg)}
}

// Name returns the configured instance name.
func (s *SyndicationSource) Name() string { return s.cfg.Name }

// Kind returns KindAPI.
func (s *SyndicationSource) Kind() Kind { return KindAPI }

// syndicationPayload mirrors the widget API response shape. The API uses
// legacy field names; conversation_count stands in for a reply count.
type syndicationPayload struct {
	IDStr             string          `json:"id_str"`
	Text              string          `json:"text"`
	CreatedAt         string          `json:"created_at"`
	FavoriteCount     int64           `json:"favorite_count"`
	RetweetCount      int64           `json:"retweet_count"`
	ConversationCount int64           `json:"conversation_count"`
	User              syndicationUser `json:"user"`
}

type syndicationUser struct {
	ScreenName     string `json:"screen_name"`
	Name           string `json:"name"`
	Verified       bool   `json:"verified"`
	IsBlueVerified bool   `json:"is_blue_verified"`
	FollowersCount int64  `json:"followers_count"`
	FriendsCount   int64  `json:"friends_count"`
}

// FetchPost retrieves a post from the widget API by ID.
func (s *SyndicationSource) FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error) {
	if err := entity.ValidatePostID(ref.ID); err != nil {
		return nil, err
	}

	endpoint := joinURL(s.cfg.BaseURL, "tweet-result") + "?id=" + url.QueryEscape(ref.ID) + "&lang=en"

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	body, err := fetchBody(reqCtx, s.client, s.cfg, endpoint)
	if err != nil {
		return nil, err
	}

	var payload syndicationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode widget payload: %w", err)
	}
	if payload.IDStr == "" {
		// The API answers 200 with an empty object for deleted posts.
		return nil, fmt.Errorf("%w: widget payload has no post", entity.ErrNotFound)
	}

	post := &entity.Post{
		ID:      payload.IDStr,
		URL:     canonicalPostURL(payload.User.ScreenName, payload.IDStr),
		Content: payload.Text,
		Author: entity.Author{
			Username:       payload.User.ScreenName,
			DisplayName:    payload.User.Name,
			Verified:       payload.User.Verified || payload.User.IsBlueVerified,
			FollowersCount: payload.User.FollowersCount,
			FollowingCount: payload.User.FriendsCount,
		},
		Engagement: entity.Engagement{
			Likes:   payload.FavoriteCount,
			Reposts: payload.RetweetCount,
			Replies: payload.ConversationCount,
		},
		CreatedAt: parsePostTime(payload.CreatedAt),
		Source:    s.cfg.Name,
	}

	if err := post.Validate(); err != nil {
		return nil, fmt.Errorf("widget payload invalid: %w", err)
	}

	return post, nil
}

// FetchUser is not supported: the widget API only serves single posts.
func (s *SyndicationSource) FetchUser(ctx context.Context, username string) (*entity.UserProfile, error) {
	return nil, fmt.Errorf("%w: %s has no user endpoint", entity.ErrNotSupported, s.cfg.Name)
}

// canonicalPostURL rebuilds the public post URL from its parts.
func canonicalPostURL(username, id string) string {
	if username == "" {
		username = "i"
	}
	return "https://x.com/" + username + "/status/" + id
}

// parsePostTime parses the timestamp formats the providers emit, falling
// back to the zero time when none match.
func parsePostTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RubyDate, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
