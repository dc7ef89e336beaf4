package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/internal/observability"
	"github.com/upb/authflow/backend/middleware"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/utils"
	"go.uber.org/zap"
)

// UserService reads and updates the caller's profile
type UserService interface {
	GetProfile(ctx context.Context, id uuid.UUID) (models.PublicProfile, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) (models.PublicProfile, error)
}

// UserHandler serves the /user endpoints. Routes must sit behind RequireAuth.
type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleMe handles GET /user/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	profile, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err, h.log(r))
		return
	}

	_ = utils.WriteOK(w, profile)
}

// HandleUpdateName handles PATCH /user/name
func (h *UserHandler) HandleUpdateName(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateNameRequest
	if !decodeAndValidate(w, r, &req, h.log(r)) {
		return
	}

	profile, err := h.users.UpdateName(r.Context(), userID, req.Name)
	if err != nil {
		HandleServiceError(w, err, h.log(r))
		return
	}

	_ = utils.WriteOK(w, profile)
}

func (h *UserHandler) log(r *http.Request) *zap.Logger {
	return observability.WithRequestID(h.logger, r.Context())
}
