package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ProjectSettings holds per-tenant overrides; zero means "use the default".
type ProjectSettings struct {
	RateLimitCount     int `json:"rate_limit_count,omitempty"`
	RateLimitBurst     int `json:"rate_limit_burst,omitempty"`
	WebhookMaxAttempts int `json:"webhook_max_attempts,omitempty"`
}

// Project is a tenant row.
type Project struct {
	ID        string
	Name      string
	Settings  ProjectSettings
	CreatedAt time.Time
}

// ProjectStore reads and writes tenants. Tenants are never hard-deleted.
type ProjectStore struct {
	db *DB
}

func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

const insertProjectQuery = `
	INSERT INTO projects (id, name, settings, created_at)
	VALUES ($1, $2, $3, $4)
`

// Create inserts a tenant. A missing ID is generated.
func (s *ProjectStore) Create(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	settings, err := jsonText(p.Settings)
	if err != nil {
		return err
	}
	if _, err := s.db.sql.ExecContext(ctx, insertProjectQuery, p.ID, p.Name, settings, sqlTime(p.CreatedAt)); err != nil {
		return fmt.Errorf("store: insert project: %w", err)
	}
	return nil
}

const getProjectQuery = `
	SELECT id, name, settings, created_at
	FROM projects
	WHERE id = $1
`

// Get returns the tenant or ErrNotFound.
func (s *ProjectStore) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.sql.QueryRowContext(ctx, getProjectQuery, id)

	var p Project
	var settings sql.NullString
	var created string
	if err := row.Scan(&p.ID, &p.Name, &settings, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	if err := fromJSONText(settings, &p.Settings); err != nil {
		return nil, err
	}
	p.CreatedAt = parseSQLTime(created)
	return &p, nil
}

const updateProjectSettingsQuery = `
	UPDATE projects SET settings = $1 WHERE id = $2
`

// UpdateSettings replaces the tenant's settings document.
func (s *ProjectStore) UpdateSettings(ctx context.Context, id string, settings ProjectSettings) error {
	doc, err := jsonText(settings)
	if err != nil {
		return err
	}
	res, err := s.db.sql.ExecContext(ctx, updateProjectSettingsQuery, doc, id)
	if err != nil {
		return fmt.Errorf("store: update project settings: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
