package app

import (
	"context"
	"fmt"

	"github.com/upb/authflow/backend/config"
	"github.com/upb/authflow/backend/handlers"
	"github.com/upb/authflow/backend/middleware"
	"github.com/upb/authflow/backend/repositories"
	"github.com/upb/authflow/backend/repositories/memory"
	"github.com/upb/authflow/backend/repositories/postgres"
	"github.com/upb/authflow/backend/services/audit"
	"github.com/upb/authflow/backend/services/auth"
	"github.com/upb/authflow/backend/services/credentials"
	"github.com/upb/authflow/backend/services/ledger"
	"github.com/upb/authflow/backend/services/sweeper"
	"github.com/upb/authflow/backend/services/tokens"
	"github.com/upb/authflow/backend/services/users"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point; collaborators are passed explicitly.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil with the memory driver
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users         repositories.UserRepository
	RefreshTokens repositories.RefreshTokenRepository
	AuthEvents    repositories.AuthEventRepository
	TxManager     repositories.TransactionManager

	// Services
	Hasher      *credentials.Hasher
	Issuer      *tokens.Issuer
	Ledger      *ledger.Ledger
	Audit       *audit.AuditService
	Sweeper     *sweeper.Sweeper
	AuthService *auth.Service
	UserService *users.Service

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies and
// starts the background workers. Call Close to stop them.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP(cfg)

	if err := deps.startWorkers(); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	if cfg.SeedDemoUsers {
		if err := SeedDemoUsers(ctx, deps.AuthService, logger); err != nil {
			_ = deps.Close(ctx)
			return nil, fmt.Errorf("failed to seed demo users: %w", err)
		}
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("driver", cfg.Database.Driver))
	return deps, nil
}

// initStorage opens PostgreSQL or builds the in-memory store
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.Driver == config.DriverMemory {
		repos := memory.NewRepositories()
		d.Users = repos.Users
		d.RefreshTokens = repos.RefreshTokens
		d.AuthEvents = repos.AuthEvents
		d.TxManager = memory.NewTransactionManager()
		d.Logger.Warn("using in-memory storage; data is lost on restart")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.HealthCheck(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	repos := factory.NewRepositories()
	d.Users = repos.Users
	d.RefreshTokens = repos.RefreshTokens
	d.AuthEvents = repos.AuthEvents
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initServices builds the auth components bottom-up
func (d *Dependencies) initServices(cfg *config.Config) error {
	hasher, err := credentials.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	issuer, err := tokens.NewIssuer(tokens.Config{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.AccessTokenTTL,
	})
	if err != nil {
		return err
	}

	refreshLedger, err := ledger.New(d.RefreshTokens, d.Logger, ledger.Config{TTL: cfg.Auth.RefreshTokenTTL})
	if err != nil {
		return err
	}

	d.Hasher = hasher
	d.Issuer = issuer
	d.Ledger = refreshLedger
	d.Audit = audit.NewAuditService(d.AuthEvents, d.Logger.Named("audit"), audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	d.Sweeper = sweeper.New(refreshLedger, cfg.Auth.SweepInterval, d.Logger.Named("sweeper")).WithRecorder(d.Audit)
	d.AuthService = auth.NewService(d.Users, hasher, issuer, refreshLedger, d.Audit, d.Logger.Named("auth"))
	d.UserService = users.NewService(d.Users, d.TxManager, d.Audit, d.Logger.Named("users"))
	return nil
}

// initHTTP builds middleware and handlers
func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Issuer, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, handlers.CookieConfig{
		Name:     cfg.Auth.RefreshCookieName,
		Path:     cfg.Auth.CookiePath,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.SameSite(),
		MaxAge:   cfg.Auth.RefreshTokenTTL,
	}, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.UserService, d.Logger)

	// Leave the interface nil rather than wrapping a nil *DB
	var dbCheck handlers.HealthChecker
	if d.DB != nil {
		dbCheck = d.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(dbCheck, d.Logger)
}

func (d *Dependencies) startWorkers() error {
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}
	if err := d.Sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start token sweeper: %w", err)
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Sweeper != nil {
		if err := d.Sweeper.Stop(d.Config.Audit.StopTimeout); err != nil {
			d.Logger.Warn("token sweeper did not stop cleanly", zap.Error(err))
		}
	}

	// Drain queued auth events before the database goes away
	if d.Audit != nil {
		if err := d.Audit.Stop(d.Config.Audit.StopTimeout); err != nil {
			d.Logger.Warn("audit service did not stop cleanly", zap.Error(err))
		}
	}

	if err := d.closeStorage(); err != nil {
		errs = append(errs, err)
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (d *Dependencies) closeStorage() error {
	if d.RepoFactory == nil {
		return nil
	}
	if err := d.RepoFactory.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.Logger.Info("database connection closed")
	return nil
}
