package post

import (
	"context"
	"net/http"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/handler/http/respond"
	"edgepulse/internal/usecase/acquire"
)

// Acquirer is the slice of the orchestrator the lookup handlers need.
// *acquire.Service satisfies this interface.
type Acquirer interface {
	FetchPost(ctx context.Context, ref entity.PostRef) (*entity.Post, error)
	FetchEngagement(ctx context.Context, ref entity.PostRef) (*acquire.EngagementSnapshot, error)
	RefreshEngagement(ctx context.Context, ref entity.PostRef) (*acquire.EngagementSnapshot, error)
	FetchUser(ctx context.Context, username string) (*entity.UserProfile, error)
}

// refFromQuery resolves a PostRef from the request: a canonical post URL in
// the url parameter, or a bare numeric status ID in the id parameter.
func refFromQuery(r *http.Request) (entity.PostRef, error) {
	if rawURL := r.URL.Query().Get("url"); rawURL != "" {
		return entity.ParsePostURL(rawURL)
	}
	if id := r.URL.Query().Get("id"); id != "" {
		if err := entity.ValidatePostID(id); err != nil {
			return entity.PostRef{}, err
		}
		return entity.PostRef{ID: id}, nil
	}
	return entity.PostRef{}, &entity.ValidationError{
		Field:   "url",
		Message: "url or id query parameter is required",
	}
}

// GetHandler serves GET /post: full post retrieval by URL or status ID.
type GetHandler struct{ Svc Acquirer }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromQuery(r)
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	p, err := h.Svc.FetchPost(r.Context(), ref)
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toDTO(p))
}
