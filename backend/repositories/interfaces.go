package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context bound to the transaction.
	// Repositories called with it run their statements inside the transaction.
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user; returns ErrDuplicate when the email is taken
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update persists the mutable fields (name, updated_at)
	Update(ctx context.Context, user *models.User) error
}

// RefreshTokenRepository handles refresh token rows
type RefreshTokenRepository interface {
	// Create persists a new token row
	Create(ctx context.Context, token *models.RefreshToken) error

	// GetByToken looks a row up by its exact token string
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the token revoked. Returns false when no row matched.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllForUser revokes every non-revoked token of the user and returns how many changed
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete removes a single row by id
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes every row with expires_at <= now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuthEventRepository stores the authentication audit trail
type AuthEventRepository interface {
	// Insert inserts a new event
	Insert(ctx context.Context, event *models.AuthEvent) error

	// ListByUser returns the newest events of a user first
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuthEvent, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	AuthEvents    AuthEventRepository
}
