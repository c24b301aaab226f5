package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// Webhook is a tenant's delivery subscription.
type Webhook struct {
	ID          string
	ProjectID   string
	URL         string
	Events      []string
	Secret      string
	Status      string
	CreatedAt   time.Time
	LastFiredAt *time.Time
}

// WebhookActive is the only status that receives deliveries.
const WebhookActive = "active"

type WebhookStore struct {
	db *DB
}

func NewWebhookStore(db *DB) *WebhookStore {
	return &WebhookStore{db: db}
}

const insertWebhookQuery = `
	INSERT INTO webhooks (id, project_id, url, events, secret, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Create inserts a subscription.
func (s *WebhookStore) Create(ctx context.Context, w *Webhook) error {
	if w.ID == "" {
		w.ID = newID()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	if w.Status == "" {
		w.Status = WebhookActive
	}
	eventsDoc, err := jsonText(w.Events)
	if err != nil {
		return err
	}
	if _, err := s.db.sql.ExecContext(ctx, insertWebhookQuery,
		w.ID, w.ProjectID, w.URL, eventsDoc, w.Secret, w.Status, sqlTime(w.CreatedAt)); err != nil {
		return fmt.Errorf("store: insert webhook: %w", err)
	}
	return nil
}

const listWebhooksQuery = `
	SELECT id, project_id, url, events, secret, status, created_at, last_fired_at
	FROM webhooks
	WHERE project_id = $1
	ORDER BY created_at DESC
`

// List returns the tenant's subscriptions, newest first.
func (s *WebhookStore) List(ctx context.Context, projectID string) ([]Webhook, error) {
	rows, err := s.db.sql.QueryContext(ctx, listWebhooksQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list webhooks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanWebhookRows(rows)
}

const getWebhookQuery = `
	SELECT id, project_id, url, events, secret, status, created_at, last_fired_at
	FROM webhooks
	WHERE id = $1
`

// Get returns a subscription by id (any tenant; dispatcher use).
func (s *WebhookStore) Get(ctx context.Context, id string) (*Webhook, error) {
	rows, err := s.db.sql.QueryContext(ctx, getWebhookQuery, id)
	if err != nil {
		return nil, fmt.Errorf("store: get webhook: %w", err)
	}
	defer func() { _ = rows.Close() }()
	hooks, err := scanWebhookRows(rows)
	if err != nil {
		return nil, err
	}
	if len(hooks) == 0 {
		return nil, ErrNotFound
	}
	return &hooks[0], nil
}

const deleteWebhookQuery = `
	DELETE FROM webhooks WHERE project_id = $1 AND id = $2
`

const deleteWebhookOutboxQuery = `
	DELETE FROM webhook_outbox WHERE project_id = $1 AND webhook_id = $2
`

// Delete removes a subscription and any deliveries still queued for it;
// ErrNotFound when absent.
func (s *WebhookStore) Delete(ctx context.Context, projectID, id string) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: delete webhook: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, deleteWebhookQuery, projectID, id)
	if err != nil {
		return fmt.Errorf("store: delete webhook: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, deleteWebhookOutboxQuery, projectID, id); err != nil {
		return fmt.Errorf("store: delete webhook outbox: %w", err)
	}
	return tx.Commit()
}

const activeWebhooksQuery = `
	SELECT id, project_id, url, events, secret, status, created_at, last_fired_at
	FROM webhooks
	WHERE project_id = $1 AND status = 'active'
`

// Matching returns the tenant's active subscriptions covering eventType.
// The events document stays JSON in SQL; the filter runs here so both
// engines behave identically.
func (s *WebhookStore) Matching(ctx context.Context, projectID, eventType string) ([]Webhook, error) {
	rows, err := s.db.sql.QueryContext(ctx, activeWebhooksQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: match webhooks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	hooks, err := scanWebhookRows(rows)
	if err != nil {
		return nil, err
	}
	matched := hooks[:0]
	for _, h := range hooks {
		if slices.Contains(h.Events, eventType) {
			matched = append(matched, h)
		}
	}
	return matched, nil
}

const markWebhookFiredQuery = `
	UPDATE webhooks SET last_fired_at = $1 WHERE id = $2
`

// MarkFired stamps a successful delivery.
func (s *WebhookStore) MarkFired(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.sql.ExecContext(ctx, markWebhookFiredQuery, sqlTime(at), id)
	return err
}

func scanWebhookRows(rows *sql.Rows) ([]Webhook, error) {
	var out []Webhook
	for rows.Next() {
		var w Webhook
		var eventsDoc sql.NullString
		var created string
		var fired sql.NullString
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.URL, &eventsDoc, &w.Secret, &w.Status, &created, &fired); err != nil {
			return nil, err
		}
		if err := fromJSONText(eventsDoc, &w.Events); err != nil {
			return nil, err
		}
		w.CreatedAt = parseSQLTime(created)
		w.LastFiredAt = parseNullTime(fired)
		out = append(out, w)
	}
	return out, rows.Err()
}
