// Package auth composes credentials, access tokens and the refresh token
// ledger into the register, login, refresh and logout flows.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/repositories"
	"github.com/upb/authflow/backend/services"
	"github.com/upb/authflow/backend/services/credentials"
	"github.com/upb/authflow/backend/services/ledger"
	"github.com/upb/authflow/backend/services/tokens"
	"go.uber.org/zap"
)

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// AccessTokenIssuer signs short-lived access tokens
type AccessTokenIssuer interface {
	IssueAccessToken(user *models.User) (string, error)
}

// RefreshLedger stores refresh tokens
type RefreshLedger interface {
	Issue(ctx context.Context, userID uuid.UUID) (*models.RefreshToken, error)
	Validate(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

// EventRecorder receives the authentication audit trail
type EventRecorder interface {
	Record(ctx context.Context, event *models.AuthEvent)
}

// Session is what a successful login hands back
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             models.PublicProfile
}

// Refreshed is what a successful refresh hands back; the refresh token is unchanged
type Refreshed struct {
	AccessToken string
	User        models.PublicProfile
}

// Service runs the authentication flows. Inputs are expected to be validated by the caller.
type Service struct {
	users    repositories.UserRepository
	hasher   PasswordHasher
	issuer   AccessTokenIssuer
	ledger   RefreshLedger
	recorder EventRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock sets the time source used for account timestamps; time.Now by default
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the collaborators together
func NewService(
	users repositories.UserRepository,
	hasher PasswordHasher,
	issuer AccessTokenIssuer,
	refreshLedger RefreshLedger,
	recorder EventRecorder,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		ledger:   refreshLedger,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(ctx context.Context, name, email, password string) (models.PublicProfile, error) {
	email = models.NormalizeEmail(email)

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return models.PublicProfile{}, services.ErrEmailAlreadyExists
	case !errors.Is(err, repositories.ErrNotFound):
		return models.PublicProfile{}, services.WrapInternal("failed to look up user", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if credentials.IsPasswordTooLong(err) {
			return models.PublicProfile{}, services.NewDomainError(services.ErrorTypeValidation, "Password must be at most 72 bytes", err)
		}
		return models.PublicProfile{}, services.WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(name, email, hash, s.now().UTC())
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return models.PublicProfile{}, services.ErrEmailAlreadyExists
		}
		return models.PublicProfile{}, services.WrapInternal("failed to create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionRegister).WithUser(user.ID).WithEmail(user.Email))

	return user.Profile(), nil
}

// Login checks the credentials and opens a session.
// An unknown email is NotFound and a wrong password is Unauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = models.NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionLoginFailed).WithEmail(email).WithReason("unknown_email"))
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to look up user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Info("login rejected", zap.String("user_id", user.ID.String()))
		s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionLoginFailed).WithUser(user.ID).WithEmail(email).WithReason("bad_password"))
		return nil, services.ErrInvalidPassword
	}

	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, services.WrapInternal("failed to issue access token", err)
	}

	refresh, err := s.ledger.Issue(ctx, user.ID)
	if err != nil {
		return nil, services.WrapInternal("failed to issue refresh token", err)
	}

	s.logger.Info("login succeeded",
		zap.String("user_id", user.ID.String()),
		zap.String("refresh_fp", tokens.Fingerprint(refresh.Token)))
	s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionLoginSucceeded).WithUser(user.ID).WithEmail(email))

	return &Session{
		AccessToken:      accessToken,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             user.Profile(),
	}, nil
}

// Refresh exchanges a refresh token for a new access token.
// Every failure is reported as Unauthorized; the refresh token is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Refreshed, error) {
	row, err := s.ledger.Validate(ctx, refreshToken)
	if err != nil {
		return nil, s.rejectRefresh(ctx, refreshToken, nil, err)
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		return nil, s.rejectRefresh(ctx, refreshToken, &row.UserID, err)
	}

	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, s.rejectRefresh(ctx, refreshToken, &row.UserID, err)
	}

	s.logger.Debug("access token refreshed", zap.String("user_id", user.ID.String()))
	s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionTokenRefreshed).WithUser(user.ID))

	return &Refreshed{AccessToken: accessToken, User: user.Profile()}, nil
}

// Logout revokes the refresh token. It never fails from the caller's point of view.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := s.ledger.Revoke(ctx, refreshToken); err != nil {
		s.logger.Error("failed to revoke refresh token on logout",
			zap.String("refresh_fp", tokens.Fingerprint(refreshToken)),
			zap.Error(err))
		return
	}
	s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionLogout))
}

// LogoutEverywhere revokes every active refresh token of the user
func (s *Service) LogoutEverywhere(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.ledger.RevokeAll(ctx, userID)
	if err != nil {
		return 0, services.WrapInternal("failed to revoke sessions", err)
	}

	s.logger.Info("revoked all sessions", zap.String("user_id", userID.String()), zap.Int64("revoked", n))
	s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionLogoutAll).WithUser(userID).WithCount("revoked", n))

	return n, nil
}

func (s *Service) rejectRefresh(ctx context.Context, refreshToken string, userID *uuid.UUID, cause error) error {
	reason := refreshRejectReason(cause)
	fields := []zap.Field{
		zap.String("refresh_fp", tokens.Fingerprint(refreshToken)),
		zap.String("reason", reason),
	}
	if reason == "internal" {
		s.logger.Error("refresh failed", append(fields, zap.Error(cause))...)
	} else {
		s.logger.Info("refresh rejected", fields...)
	}

	event := models.NewAuthEvent(models.AuthActionRefreshRejected).WithReason(reason)
	if userID != nil {
		event.WithUser(*userID)
	}
	s.recorder.Record(ctx, event)

	return services.Wrap(services.ErrInvalidRefreshToken, cause)
}

func refreshRejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ledger.ErrTokenExpired):
		return "expired"
	case errors.Is(err, repositories.ErrNotFound):
		return "user_missing"
	default:
		return "internal"
	}
}
