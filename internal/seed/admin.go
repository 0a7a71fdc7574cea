package seed

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"medsales/m/domain"
)

// UserStore is what EnsureAdmin needs from the store.
type UserStore interface {
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, user domain.User) (int64, error)
}

// EnsureAdmin creates an Admin account when no user exists yet.
func EnsureAdmin(ctx context.Context, store UserStore, username, password string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if username == "" || password == "" {
		return errors.New("admin username and password are required")
	}
	n, err := store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := store.CreateUser(ctx, domain.User{Username: username, Password: string(hashed), Role: domain.RoleAdmin}); err != nil {
		return err
	}
	log.Info("created initial admin user", zap.String("username", username))
	return nil
}
