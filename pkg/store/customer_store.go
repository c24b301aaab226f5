package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
)

// candidateLimit bounds how many recent rows feed fuzzy matching.
const candidateLimit = 500

// Customer is a per-tenant identity row. Original and normalized contact
// fields are kept side by side; dedupe only ever reads the normalized ones.
type Customer struct {
	ID              string
	ProjectID       string
	Email           string
	NormalizedEmail string
	Phone           string
	NormalizedPhone string
	FirstName       string
	LastName        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CustomerStore struct {
	db *DB
}

func NewCustomerStore(db *DB) *CustomerStore {
	return &CustomerStore{db: db}
}

const upsertCustomerQuery = `
	INSERT INTO customers
		(id, project_id, email, normalized_email, phone, normalized_phone, first_name, last_name, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (project_id, normalized_email) WHERE normalized_email <> ''
	DO UPDATE SET
		email = excluded.email,
		phone = excluded.phone,
		normalized_phone = excluded.normalized_phone,
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		updated_at = excluded.updated_at
`

const customerIDByEmailQuery = `
	SELECT id FROM customers WHERE project_id = $1 AND normalized_email = $2
`

const insertCustomerQuery = `
	INSERT INTO customers
		(id, project_id, email, normalized_email, phone, normalized_phone, first_name, last_name, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Upsert writes the customer and returns the canonical row id. With a
// normalized email the row converges on the (project_id, normalized_email)
// invariant; without one every call inserts a distinct row.
func (s *CustomerStore) Upsert(ctx context.Context, c *Customer) (string, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if c.NormalizedEmail == "" {
		if _, err := s.db.sql.ExecContext(ctx, insertCustomerQuery,
			c.ID, c.ProjectID, c.Email, c.NormalizedEmail, c.Phone, c.NormalizedPhone,
			c.FirstName, c.LastName, sqlTime(c.CreatedAt), sqlTime(c.UpdatedAt)); err != nil {
			return "", fmt.Errorf("store: insert customer: %w", err)
		}
		return c.ID, nil
	}

	if _, err := s.db.sql.ExecContext(ctx, upsertCustomerQuery,
		c.ID, c.ProjectID, c.Email, c.NormalizedEmail, c.Phone, c.NormalizedPhone,
		c.FirstName, c.LastName, sqlTime(c.CreatedAt), sqlTime(c.UpdatedAt)); err != nil {
		return "", fmt.Errorf("store: upsert customer: %w", err)
	}

	var id string
	err := s.db.sql.QueryRowContext(ctx, customerIDByEmailQuery, c.ProjectID, c.NormalizedEmail).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store: resolve upserted customer: %w", err)
	}
	c.ID = id
	return id, nil
}

const getCustomerQuery = `
	SELECT id, project_id, email, normalized_email, phone, normalized_phone, first_name, last_name, created_at, updated_at
	FROM customers
	WHERE project_id = $1 AND id = $2
`

// Get returns the customer or ErrNotFound.
func (s *CustomerStore) Get(ctx context.Context, projectID, id string) (*Customer, error) {
	row := s.db.sql.QueryRowContext(ctx, getCustomerQuery, projectID, id)

	var c Customer
	var created, updated string
	err := row.Scan(&c.ID, &c.ProjectID, &c.Email, &c.NormalizedEmail, &c.Phone, &c.NormalizedPhone,
		&c.FirstName, &c.LastName, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get customer: %w", err)
	}
	c.CreatedAt = parseSQLTime(created)
	c.UpdatedAt = parseSQLTime(updated)
	return &c, nil
}

const customersByEmailQuery = `
	SELECT id, normalized_email, normalized_phone, first_name, last_name
	FROM customers
	WHERE project_id = $1 AND normalized_email = $2
`

// CustomersByNormalizedEmail serves the exact-email dedupe lookup.
func (s *CustomerStore) CustomersByNormalizedEmail(ctx context.Context, projectID, email string) ([]dedupe.CustomerRecord, error) {
	if email == "" {
		return nil, nil
	}
	return s.records(ctx, customersByEmailQuery, projectID, email)
}

const customersByPhoneQuery = `
	SELECT id, normalized_email, normalized_phone, first_name, last_name
	FROM customers
	WHERE project_id = $1 AND normalized_phone = $2
`

// CustomersByNormalizedPhone serves the exact-phone dedupe lookup.
func (s *CustomerStore) CustomersByNormalizedPhone(ctx context.Context, projectID, phone string) ([]dedupe.CustomerRecord, error) {
	if phone == "" {
		return nil, nil
	}
	return s.records(ctx, customersByPhoneQuery, projectID, phone)
}

const customerCandidatesQuery = `
	SELECT id, normalized_email, normalized_phone, first_name, last_name
	FROM customers
	WHERE project_id = $1
	ORDER BY created_at DESC
	LIMIT $2
`

// CustomerCandidates returns a bounded recent window for fuzzy matching.
func (s *CustomerStore) CustomerCandidates(ctx context.Context, projectID string) ([]dedupe.CustomerRecord, error) {
	return s.records(ctx, customerCandidatesQuery, projectID, candidateLimit)
}

func (s *CustomerStore) records(ctx context.Context, query string, args ...any) ([]dedupe.CustomerRecord, error) {
	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []dedupe.CustomerRecord
	for rows.Next() {
		var r dedupe.CustomerRecord
		if err := rows.Scan(&r.ID, &r.NormalizedEmail, &r.NormalizedPhone, &r.FirstName, &r.LastName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
