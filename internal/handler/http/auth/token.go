package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"edgepulse/internal/handler/http/requestid"
	"edgepulse/internal/handler/http/respond"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is how long an issued admin token stays valid.
const tokenTTL = time.Hour

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// TokenHandler serves POST /auth/token: it validates the admin credential
// and issues an HS256 JWT with the admin role.
func TokenHandler(provider *Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := slog.With(slog.String("request_id", requestid.FromContext(r.Context())))

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("authentication failed",
				slog.String("reason", "invalid_request"),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			respond.Error(w, http.StatusBadRequest, "invalid request")
			return
		}

		if err := provider.ValidateCredentials(req.Username, req.Password); err != nil {
			logger.Warn("authentication failed",
				slog.String("reason", "invalid_credentials"),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		expiresAt := time.Now().Add(tokenTTL)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  req.Username,
			"role": RoleAdmin,
			"exp":  expiresAt.Unix(),
		})

		signed, err := token.SignedString(provider.Secret())
		if err != nil {
			logger.Error("token generation failed",
				slog.String("error", err.Error()))
			respond.Error(w, http.StatusInternalServerError, "token generation failed")
			return
		}

		logger.Info("authentication successful",
			slog.String("user", req.Username),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))

		respond.JSON(w, http.StatusOK, tokenResponse{
			Token:     signed,
			ExpiresAt: expiresAt.Unix(),
		})
	}
}
