package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/repositories"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	now := time.Now()

	user := models.NewUser("Alice", "alice@example.com", "hash", now)
	require.NoError(t, repo.Create(ctx, user))

	t.Run("duplicate email", func(t *testing.T) {
		dup := models.NewUser("Other", "alice@example.com", "hash", now)
		assert.ErrorIs(t, repo.Create(ctx, dup), repositories.ErrDuplicate)
	})

	t.Run("lookup returns copies", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		got.Name = "mutated"

		again, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", again.Name)
	})

	t.Run("update", func(t *testing.T) {
		user.Rename("Alice L", now.Add(time.Minute))
		require.NoError(t, repo.Update(ctx, user))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice L", got.Name)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.ErrorIs(t, repo.Update(ctx, models.NewUser("x", "x@example.com", "h", now)), repositories.ErrNotFound)
	})
}

func TestRefreshTokenRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshTokenRepository()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	alice, bob := uuid.New(), uuid.New()

	a1 := models.NewRefreshToken("a1", alice, now, time.Hour)
	a2 := models.NewRefreshToken("a2", alice, now, 2*time.Hour)
	b1 := models.NewRefreshToken("b1", bob, now, time.Hour)
	for _, rt := range []*models.RefreshToken{a1, a2, b1} {
		require.NoError(t, repo.Create(ctx, rt))
	}
	assert.ErrorIs(t, repo.Create(ctx, models.NewRefreshToken("a1", bob, now, time.Hour)), repositories.ErrDuplicate)

	ok, err := repo.Revoke(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Revoke(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.RevokeAllForUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a1 was already revoked")

	got, err := repo.GetByToken(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, got.Revoked)

	n, err = repo.DeleteExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, repo.Len())

	require.NoError(t, repo.Delete(ctx, a2.ID))
	assert.Equal(t, 0, repo.Len())
	_, err = repo.GetByToken(ctx, "a2")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAuthEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAuthEventRepository()
	userID := uuid.New()

	older := models.NewAuthEvent(models.AuthActionLoginSucceeded).WithUser(userID)
	older.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := models.NewAuthEvent(models.AuthActionLogout).WithUser(userID)
	newer.Timestamp = older.Timestamp.Add(time.Minute)
	anon := models.NewAuthEvent(models.AuthActionLoginFailed).WithEmail("ghost@example.com")

	for _, e := range []*models.AuthEvent{older, newer, anon} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	events, err := repo.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.AuthActionLogout, events[0].Action)

	events, err = repo.ListByUser(ctx, userID, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Len(t, repo.All(), 3)
}

func TestTransactionManager(t *testing.T) {
	tm := NewTransactionManager()
	called := false
	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		called = true
		assert.NoError(t, tx.Commit())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
