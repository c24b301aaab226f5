package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a dashboard identity. Each user belongs to one tenant.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	ProjectID    string
	CreatedAt    time.Time
}

type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const insertUserQuery = `
	INSERT INTO users (id, email, password_hash, project_id, created_at)
	VALUES ($1, $2, $3, $4, $5)
`

// Create inserts a user; a taken email returns ErrUserExists.
func (s *UserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.db.sql.ExecContext(ctx, insertUserQuery, u.ID, u.Email, u.PasswordHash, u.ProjectID, sqlTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("store: insert user: %w", err)
	}
	return nil
}

const userByEmailQuery = `
	SELECT id, email, password_hash, project_id, created_at
	FROM users
	WHERE email = $1
`

// ByEmail returns the user owning the email or ErrNotFound.
func (s *UserStore) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.one(ctx, userByEmailQuery, strings.ToLower(strings.TrimSpace(email)))
}

const userByIDQuery = `
	SELECT id, email, password_hash, project_id, created_at
	FROM users
	WHERE id = $1
`

// ByID returns the user or ErrNotFound.
func (s *UserStore) ByID(ctx context.Context, id string) (*User, error) {
	return s.one(ctx, userByIDQuery, id)
}

func (s *UserStore) one(ctx context.Context, query, arg string) (*User, error) {
	row := s.db.sql.QueryRowContext(ctx, query, arg)

	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.ProjectID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	u.CreatedAt = parseSQLTime(created)
	return &u, nil
}

// isUniqueViolation matches the duplicate-key errors of both engines
// without binding to driver-specific error types: lib/pq reports SQLSTATE
// 23505, modernc SQLite reports "UNIQUE constraint failed".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
