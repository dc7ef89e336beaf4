package handlers

import (
	"net/http"

	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/utils"
	"go.uber.org/zap"
)

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateNameRequest is the body of PATCH /user/name
type UpdateNameRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

// UserResponse wraps a profile with an acknowledgement
type UserResponse struct {
	Message string               `json:"message"`
	User    models.PublicProfile `json:"user"`
}

// TokenResponse carries a fresh access token
type TokenResponse struct {
	Message     string               `json:"message"`
	AccessToken string               `json:"accessToken"`
	User        models.PublicProfile `json:"user"`
}

// decodeAndValidate reads the JSON body into dst and validates it.
// On failure it writes a 400 and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	if err := utils.DecodeJSON(w, r, dst); err != nil {
		HandleValidationError(w, err, logger)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}
