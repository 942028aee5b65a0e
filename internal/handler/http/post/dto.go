// Package post provides the public lookup handlers: post, engagement, and
// user profile retrieval through the fallback orchestrator.
package post

import (
	"time"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/usecase/acquire"
)

// DTO is the JSON shape of a post lookup response.
type DTO struct {
	ID              string        `json:"id"`
	URL             string        `json:"url,omitempty"`
	Content         string        `json:"content"`
	Author          AuthorDTO     `json:"author"`
	Engagement      EngagementDTO `json:"engagement"`
	CreatedAt       time.Time     `json:"created_at"`
	Source          string        `json:"source"`
	CommunityTagged bool          `json:"community_tagged,omitempty"`
}

// AuthorDTO is the JSON shape of a post author.
type AuthorDTO struct {
	Username       string `json:"username"`
	DisplayName    string `json:"display_name,omitempty"`
	Verified       bool   `json:"verified"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
}

// EngagementDTO is the JSON shape of engagement counters.
type EngagementDTO struct {
	Likes   int64 `json:"likes"`
	Reposts int64 `json:"reposts"`
	Replies int64 `json:"replies"`
}

// EngagementResponse is the JSON shape of an engagement lookup response.
type EngagementResponse struct {
	PostID     string        `json:"post_id"`
	Engagement EngagementDTO `json:"engagement"`
	Source     string        `json:"source"`
}

// UserDTO is the JSON shape of a user profile lookup response.
type UserDTO struct {
	Username       string `json:"username"`
	DisplayName    string `json:"display_name,omitempty"`
	Verified       bool   `json:"verified"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
	Source         string `json:"source"`
}

func toDTO(p *entity.Post) DTO {
	return DTO{
		ID:      p.ID,
		URL:     p.URL,
		Content: p.Content,
		Author: AuthorDTO{
			Username:       p.Author.Username,
			DisplayName:    p.Author.DisplayName,
			Verified:       p.Author.Verified,
			FollowersCount: p.Author.FollowersCount,
			FollowingCount: p.Author.FollowingCount,
		},
		Engagement:      toEngagementDTO(p.Engagement),
		CreatedAt:       p.CreatedAt,
		Source:          p.Source,
		CommunityTagged: p.CommunityTagged,
	}
}

func toEngagementDTO(e entity.Engagement) EngagementDTO {
	return EngagementDTO{Likes: e.Likes, Reposts: e.Reposts, Replies: e.Replies}
}

func toEngagementResponse(ref entity.PostRef, snap *acquire.EngagementSnapshot) EngagementResponse {
	return EngagementResponse{
		PostID:     ref.ID,
		Engagement: toEngagementDTO(snap.Engagement),
		Source:     snap.Source,
	}
}

func toUserDTO(u *entity.UserProfile) UserDTO {
	return UserDTO{
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Verified:       u.Verified,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
		Source:         u.Source,
	}
}
