// Package users serves the authenticated user's own profile.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/repositories"
	"github.com/upb/authflow/backend/services"
	"go.uber.org/zap"
)

// EventRecorder receives profile change events
type EventRecorder interface {
	Record(ctx context.Context, event *models.AuthEvent)
}

// Service reads and updates user profiles
type Service struct {
	users    repositories.UserRepository
	txMgr    repositories.TransactionManager
	recorder EventRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new user Service
func NewService(users repositories.UserRepository, txMgr repositories.TransactionManager, recorder EventRecorder, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		txMgr:    txMgr,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// GetProfile returns the public profile of id
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (models.PublicProfile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.PublicProfile{}, services.ErrUserNotFound
		}
		return models.PublicProfile{}, services.WrapInternal("failed to load user", err)
	}
	return user.Profile(), nil
}

// UpdateName renames the user and returns the updated profile
func (s *Service) UpdateName(ctx context.Context, id uuid.UUID, name string) (models.PublicProfile, error) {
	profile, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (models.PublicProfile, error) {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return models.PublicProfile{}, err
		}

		user.Rename(name, s.now().UTC())
		if err := s.users.Update(ctx, user); err != nil {
			return models.PublicProfile{}, err
		}
		return user.Profile(), nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.PublicProfile{}, services.ErrUserNotFound
		}
		return models.PublicProfile{}, services.WrapInternal("failed to update name", err)
	}

	s.logger.Info("user renamed", zap.String("user_id", id.String()))
	s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionNameChanged).WithUser(id))

	return profile, nil
}
