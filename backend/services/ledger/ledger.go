// Package ledger keeps the server-side record of long-lived refresh tokens.
//
// Tokens are opaque random strings. A token is usable while its row exists,
// is not revoked, and the current time is not past its expiry. Tokens are
// not rotated on use.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/repositories"
	"go.uber.org/zap"
)

const (
	// DefaultRefreshTTL is how long a refresh token stays valid
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// tokenBytes is the amount of entropy per token; the hex form is twice as long
	tokenBytes = 64
)

var (
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
)

// Config configures a Ledger
type Config struct {
	TTL time.Duration
	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// Ledger issues, validates and revokes refresh tokens
type Ledger struct {
	repo   repositories.RefreshTokenRepository
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time
	random func([]byte) (int, error)
}

// New creates a Ledger backed by repo
func New(repo repositories.RefreshTokenRepository, logger *zap.Logger, cfg Config) (*Ledger, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		repo:   repo,
		logger: logger,
		ttl:    cfg.TTL,
		now:    now,
		random: rand.Read,
	}, nil
}

// TTL returns the lifetime of issued tokens
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Issue creates and persists a new token for userID
func (l *Ledger) Issue(ctx context.Context, userID uuid.UUID) (*models.RefreshToken, error) {
	value, err := l.generate()
	if err != nil {
		return nil, err
	}

	token := models.NewRefreshToken(value, userID, l.now().UTC(), l.ttl)
	if err := l.repo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	l.logger.Debug("refresh token issued",
		zap.String("user_id", userID.String()),
		zap.Time("expires_at", token.ExpiresAt))

	return token, nil
}

// Validate returns the stored row for value when it is usable.
// An expired row is deleted before ErrTokenExpired is returned.
func (l *Ledger) Validate(ctx context.Context, value string) (*models.RefreshToken, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}

	token, err := l.repo.GetByToken(ctx, value)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}

	if token.Revoked {
		return nil, ErrTokenRevoked
	}

	if token.IsExpired(l.now()) {
		if err := l.repo.Delete(ctx, token.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			l.logger.Warn("failed to delete expired refresh token",
				zap.String("token_id", token.ID.String()),
				zap.Error(err))
		}
		return nil, ErrTokenExpired
	}

	return token, nil
}

// Revoke marks value revoked. Unknown or already revoked tokens are not an error.
func (l *Ledger) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	if _, err := l.repo.Revoke(ctx, value); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll revokes every active token of userID and reports how many changed
func (l *Ledger) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := l.repo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return n, nil
}

// SweepExpired deletes every row whose expiry is at or before now
func (l *Ledger) SweepExpired(ctx context.Context) (int64, error) {
	n, err := l.repo.DeleteExpired(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("sweep refresh tokens: %w", err)
	}
	return n, nil
}

func (l *Ledger) generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := l.random(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
