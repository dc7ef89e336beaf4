package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted, opaque, long-lived credential
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Token     string    `json:"-" db:"token"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the RefreshToken model
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// NewRefreshToken records token for userID, valid for ttl from now
func NewRefreshToken(token string, userID uuid.UUID, now time.Time, ttl time.Duration) *RefreshToken {
	return &RefreshToken{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		Revoked:   false,
		CreatedAt: now,
	}
}

// IsExpired reports whether now is strictly past the expiry.
// A token is still usable at exactly ExpiresAt.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActive is true for tokens that are neither revoked nor expired
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
