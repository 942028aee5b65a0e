// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Post and UserProfile, along with
// their validation rules and domain-specific errors.
package entity

import (
	"strings"
	"time"

	"edgepulse/internal/utils/text"
)

// Post represents a social-media post acquired from an upstream provider.
// It carries the post content, author metadata, engagement counts, and the
// name of the source that produced the data.
type Post struct {
	ID              string
	URL             string
	Content         string
	Author          Author
	Engagement      Engagement
	CreatedAt       time.Time
	Source          string
	CommunityTagged bool
}

// Author holds the public profile fields of a post's author.
type Author struct {
	Username       string
	DisplayName    string
	Verified       bool
	FollowersCount int64
	FollowingCount int64
}

// Engagement holds the public engagement counters of a post.
type Engagement struct {
	Likes   int64
	Reposts int64
	Replies int64
}

// UserProfile represents a standalone user lookup result.
type UserProfile struct {
	Username       string
	DisplayName    string
	Verified       bool
	FollowersCount int64
	FollowingCount int64
	Source         string
}

// maxContentLength bounds stored post content. Long-form posts top out well
// below this; anything larger indicates a scraper picked up page chrome.
const maxContentLength = 10000

// Validate checks that the post carries the minimum fields required for caching.
func (p *Post) Validate() error {
	if err := ValidatePostID(p.ID); err != nil {
		return err
	}
	if text.CountRunes(p.Content) > maxContentLength {
		return &ValidationError{Field: "content", Message: "content exceeds maximum length"}
	}
	if p.Author.Username == "" {
		return &ValidationError{Field: "author.username", Message: "author username is required"}
	}
	return nil
}

// MentionsCommunity reports whether the post content contains any of the given
// community tags. Matching is a case-insensitive substring check, so both
// "@EdgePulse" and "$PULSE" styles work.
func (p *Post) MentionsCommunity(tags []string) bool {
	if len(tags) == 0 {
		return false
	}
	content := strings.ToLower(p.Content)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if strings.Contains(content, tag) {
			return true
		}
	}
	return false
}
