// Package memory provides map-backed repositories for local runs and tests.
// Rows are copied on the way in and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/repositories"
)

var (
	_ repositories.UserRepository         = (*UserRepository)(nil)
	_ repositories.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
	_ repositories.AuthEventRepository    = (*AuthEventRepository)(nil)
	_ repositories.TransactionManager     = (*TransactionManager)(nil)
)

// NewRepositories returns a fresh, empty set of repositories
func NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:         NewUserRepository(),
		RefreshTokens: NewRefreshTokenRepository(),
		AuthEvents:    NewAuthEventRepository(),
	}
}

// UserRepository is an in-memory repositories.UserRepository
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]models.User
	byEmail map[string]uuid.UUID
}

// NewUserRepository creates an empty user store
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[uuid.UUID]models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return fmt.Errorf("user email %s: %w", user.Email, repositories.ErrDuplicate)
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user with email %s: %w", email, repositories.ErrNotFound)
	}
	user := r.byID[id]
	return &user, nil
}

func (r *UserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, repositories.ErrNotFound)
	}
	stored.Name = user.Name
	stored.UpdatedAt = user.UpdatedAt
	r.byID[user.ID] = stored
	return nil
}

// RefreshTokenRepository is an in-memory repositories.RefreshTokenRepository
type RefreshTokenRepository struct {
	mu      sync.RWMutex
	byToken map[string]models.RefreshToken
}

// NewRefreshTokenRepository creates an empty token store
func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{
		byToken: make(map[string]models.RefreshToken),
	}
}

func (r *RefreshTokenRepository) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[token.Token]; ok {
		return fmt.Errorf("refresh token %s: %w", token.ID, repositories.ErrDuplicate)
	}
	r.byToken[token.Token] = *token
	return nil
}

func (r *RefreshTokenRepository) GetByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.byToken[token]
	if !ok {
		return nil, fmt.Errorf("refresh token: %w", repositories.ErrNotFound)
	}
	return &rt, nil
}

func (r *RefreshTokenRepository) Revoke(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.byToken[token]
	if !ok {
		return false, nil
	}
	rt.Revoked = true
	r.byToken[token] = rt
	return true, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rt := range r.byToken {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			r.byToken[key] = rt
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, rt := range r.byToken {
		if rt.ID == id {
			delete(r.byToken, key)
			return nil
		}
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rt := range r.byToken {
		if !rt.ExpiresAt.After(now) {
			delete(r.byToken, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows
func (r *RefreshTokenRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

// AuthEventRepository is an in-memory repositories.AuthEventRepository
type AuthEventRepository struct {
	mu     sync.RWMutex
	events []models.AuthEvent
}

// NewAuthEventRepository creates an empty event log
func NewAuthEventRepository() *AuthEventRepository {
	return &AuthEventRepository{}
}

func (r *AuthEventRepository) Insert(_ context.Context, event *models.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *AuthEventRepository) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*models.AuthEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.AuthEvent
	for i := range r.events {
		if e := r.events[i]; e.UserID != nil && *e.UserID == userID {
			out = append(out, &e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns a snapshot of every recorded event in insertion order
func (r *AuthEventRepository) All() []models.AuthEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.AuthEvent(nil), r.events...)
}

// TransactionManager runs the callback directly; each map operation is already atomic.
type TransactionManager struct{}

// NewTransactionManager returns a no-op transaction manager
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &transaction{ctx: ctx}, nil
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, _ := m.Begin(ctx)
	return fn(ctx, tx)
}

type transaction struct {
	ctx context.Context
}

func (t *transaction) Commit() error            { return nil }
func (t *transaction) Rollback() error          { return nil }
func (t *transaction) Context() context.Context { return t.ctx }
