// Package source provides upstream data source adapters for post acquisition.
// Each adapter knows how to fetch post data from one kind of provider; all
// resilience (retries, circuit breaking, rate limiting, fallback ordering)
// lives in the layers above, so adapters perform exactly one attempt per call.
package source

import (
	"context"

	"edgepulse/internal/domain/entity"
)

// Kind identifies the protocol family a source speaks.
type Kind string

const (
	// KindAPI is a JSON widget API queried by post ID.
	KindAPI Kind = "api"

	// KindEmbed is an HTML embed page scraped for post data.
	KindEmbed Kind = "embed"

	// KindRSS is an RSS mirror of user timelines.
	KindRSS Kind = "rss"

	// KindNoop is a placeholder that serves nothing.
	KindNoop Kind = "noop"
)

// Source fetches post data from one upstream provider.
//
// Implementations perform a single attempt: no retries, no circuit breaking.
// Errors follow the shared taxonomy: entity.ErrNotFound for a missing post,
// entity.ErrRateLimited for quota rejections, entity.ErrNotSupported when the
// adapter cannot serve the verb at all, and *retry.HTTPError for other
// upstream status codes so callers can classify them.
type Source interface {
	// Name returns the configured instance name used in logs, metrics,
	// and breaker/queue operation names.
	Name() string

	// Kind returns the protocol family of the adapter.
	Kind() Kind

	// FetchPost retrieves a post, its author, and engagement counts.
	FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error)

	// FetchUser retrieves a standalone user profile. Adapters that cannot
	// look up users return entity.ErrNotSupported.
	FetchUser(ctx context.Context, username string) (*entity.UserProfile, error)
}
