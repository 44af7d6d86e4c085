// Package handler exposes login and logout over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vigia/internal/auth/service"
	dErrors "vigia/pkg/domain-errors"
	"vigia/pkg/platform/httputil"
	middlewareauth "vigia/pkg/platform/middleware/auth"
	"vigia/pkg/platform/middleware/request"
)

// Service is the authentication surface the handler depends on.
type Service interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, rawToken, jti string) error
}

// TokenValidator re-parses the bearer token during logout so the handler can
// hand its JTI to the revocation list.
type TokenValidator interface {
	ValidateToken(tokenString string) (*middlewareauth.JWTClaims, error)
}

type Handler struct {
	auth      Service
	validator TokenValidator
	logger    *slog.Logger
}

func New(auth Service, validator TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, validator: validator, logger: logger}
}

// RegisterPublic mounts the unauthenticated login route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

// RegisterAuthenticated mounts routes that require a valid token.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[loginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "username and password are required"))
		return
	}

	result, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			"request_id", requestID,
			"username", req.Username,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(result.ExpiresIn.Seconds()),
		Role:        string(result.User.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		// RequireAuth already accepted this token; a failure here means it
		// expired between the two parses, which logout treats as done.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.auth.Logout(ctx, token, claims.JTI); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
