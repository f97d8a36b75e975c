package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// UserService is the credential store: it persists user records and
// enforces username/email uniqueness.
type UserService struct {
	db *sqlx.DB
}

func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{db: db}
}

// Create inserts a new user with an already-hashed password. Returns
// ErrDuplicate when the username or email is taken.
func (s *UserService) Create(ctx context.Context, username, email, passwordHash string) (*User, error) {
	query, args, err := sq.Insert("users").
		Columns("username", "email", "password_hash").
		Values(username, email, passwordHash).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	var user User
	if err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to load created user: %w", err)
	}

	return &user, nil
}

// FindByUsername returns the user with the given username, or ErrNotFound.
// Matching is exact and case-sensitive.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
