package store

import (
	"context"
	"strings"

	"medsales/m/domain"
)

// UserByUsername loads a user, matching the name case-insensitively.
func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, s.q(`SELECT id, username, password, role FROM users WHERE LOWER(username) = ?`),
		strings.ToLower(strings.TrimSpace(username)))
	return user, notFound(err)
}

// CreateUser stores a user whose Password is already hashed.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	id, err := s.insert(ctx, s.db, `INSERT INTO users (username, password, role) VALUES (?, ?, ?)`,
		strings.TrimSpace(user.Username), user.Password, user.Role)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

// CountUsers is used to decide whether to seed an administrator.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}
