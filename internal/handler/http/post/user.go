package post

import (
	"net/http"

	"edgepulse/internal/domain/entity"
	"edgepulse/internal/handler/http/respond"
)

// UserHandler serves GET /user: public profile lookup by username.
type UserHandler struct{ Svc Acquirer }

func (h UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if err := entity.ValidateUsername(username); err != nil {
		respond.DomainError(w, err)
		return
	}

	profile, err := h.Svc.FetchUser(r.Context(), username)
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toUserDTO(profile))
}
