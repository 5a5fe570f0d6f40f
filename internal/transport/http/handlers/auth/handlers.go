package authhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pms/internal/domain/auth"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
)

const tokenTTL = 8 * time.Hour

type Handler struct {
	Auth   *auth.Service
	Secret string
}

func NewHandler(authSvc *auth.Service, secret string) *Handler {
	return &Handler{Auth: authSvc, Secret: secret}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.LoginRateLimit(10, time.Minute)).Post("/login", h.handleLogin)
		r.With(middleware.RequireUser).Get("/me", h.handleMe)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	user, err := h.Auth.Login(r.Context(), payload.Email, payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserNotActive) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", middleware.GetRequestID(r.Context()))
		return
	}

	token, err := auth.IssueToken(h.Secret, user.ID, user.RoleID, time.Now(), tokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, loginResponse{Token: token, User: user}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	eff, err := h.Auth.EffectivePermissions(r.Context(), user)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "permission_error", "permission resolution failed", middleware.GetRequestID(r.Context()))
		return
	}

	perms := make([]auth.Permission, 0, len(eff.Permissions))
	for p := range eff.Permissions {
		perms = append(perms, p)
	}
	api.Success(w, map[string]any{
		"user":         user,
		"permissions":  perms,
		"scope":        eff.Scope,
		"isLeadership": eff.IsLeadership,
	}, middleware.GetRequestID(r.Context()))
}
