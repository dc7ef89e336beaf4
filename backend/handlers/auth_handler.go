package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/internal/observability"
	"github.com/upb/authflow/backend/middleware"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/services/auth"
	"github.com/upb/authflow/backend/utils"
	"go.uber.org/zap"
)

// AuthService is the subset of the auth flows the handler drives
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (models.PublicProfile, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Refreshed, error)
	Logout(ctx context.Context, refreshToken string)
	LogoutEverywhere(ctx context.Context, userID uuid.UUID) (int64, error)
}

// CookieConfig describes the refresh token cookie
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// AuthHandler serves the /auth endpoints
type AuthHandler struct {
	auth   AuthService
	cookie CookieConfig
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService AuthService, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		cookie: cookie,
		logger: logger,
	}
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req, h.log(r)) {
		return
	}

	profile, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.log(r))
		return
	}

	_ = utils.WriteCreated(w, UserResponse{Message: "User registered successfully", User: profile})
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req, h.log(r)) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.log(r))
		return
	}

	h.setRefreshCookie(w, session.RefreshToken, session.RefreshExpiresAt)
	_ = utils.WriteOK(w, TokenResponse{
		Message:     "Login successful",
		AccessToken: session.AccessToken,
		User:        session.User,
	})
}

// HandleRefresh handles POST /auth/refresh.
// The refresh token is read from the cookie only; it is never rotated.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshed, err := h.auth.Refresh(r.Context(), h.refreshTokenFrom(r))
	if err != nil {
		h.clearRefreshCookie(w)
		HandleServiceError(w, err, h.log(r))
		return
	}

	_ = utils.WriteOK(w, TokenResponse{
		Message:     "Token refreshed successfully",
		AccessToken: refreshed.AccessToken,
		User:        refreshed.User,
	})
}

// HandleLogout handles POST /auth/logout. It always succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), h.refreshTokenFrom(r))
	h.clearRefreshCookie(w)
	_ = utils.WriteMessage(w, http.StatusOK, "Logout successful")
}

// HandleLogoutAll handles POST /auth/logout-all for an authenticated user
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	revoked, err := h.auth.LogoutEverywhere(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err, h.log(r))
		return
	}

	h.clearRefreshCookie(w)
	_ = utils.WriteOK(w, map[string]interface{}{
		"message": "Logged out from all sessions",
		"revoked": revoked,
	})
}

func (h *AuthHandler) refreshTokenFrom(r *http.Request) string {
	cookie, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     h.cookie.Path,
		Expires:  expiresAt,
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) log(r *http.Request) *zap.Logger {
	return observability.WithRequestID(h.logger, r.Context())
}
