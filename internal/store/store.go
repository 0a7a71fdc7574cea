// Package store persists users, inventory and sales with sqlx. Queries are
// written with ? placeholders and rebound for the connected driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"medsales/m/internal/database"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("already exists")
)

// StockError reports a sale line that exceeds live stock.
type StockError struct {
	Medicine  string
	Requested int64
	Available int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s: requested %d, available %d", e.Medicine, e.Requested, e.Available)
}

// Store wraps a database handle.
type Store struct {
	db      *sqlx.DB
	dialect database.Dialect
}

// New returns a Store over db.
func New(db *sqlx.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// insert runs an INSERT and returns the new id. Postgres has no
// LastInsertId, so it goes through RETURNING.
func (s *Store) insert(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	if s.dialect == database.Postgres {
		var id int64
		err := sqlx.GetContext(ctx, ext, &id, s.q(query+" RETURNING id"), args...)
		return id, err
	}
	res, err := ext.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
