package app

import (
	"context"

	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/services"
	"go.uber.org/zap"
)

// DemoUser is an account created by SeedDemoUsers
type DemoUser struct {
	Name     string
	Email    string
	Password string
}

// DemoUsers are the development accounts
var DemoUsers = []DemoUser{
	{Name: "Admin User", Email: "admin@example.com", Password: "Admin@123"},
	{Name: "Test User", Email: "test@example.com", Password: "User@123"},
	{Name: "John Doe", Email: "john@example.com", Password: "Test@123"},
}

// Registrar creates accounts
type Registrar interface {
	Register(ctx context.Context, name, email, password string) (models.PublicProfile, error)
}

// SeedDemoUsers registers DemoUsers. Accounts that already exist are skipped.
func SeedDemoUsers(ctx context.Context, registrar Registrar, logger *zap.Logger) error {
	for _, u := range DemoUsers {
		_, err := registrar.Register(ctx, u.Name, u.Email, u.Password)
		switch {
		case err == nil:
			logger.Info("seeded demo user", zap.String("email", u.Email))
		case services.IsConflictError(err):
			logger.Debug("demo user already exists", zap.String("email", u.Email))
		default:
			return err
		}
	}
	return nil
}
