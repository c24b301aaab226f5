package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Outbox statuses.
const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
	OutboxDead      = "dead"
)

// OutboxRecord is one webhook delivery owed to a subscription. Rows are
// durable: a restart picks up where the dispatcher left off.
type OutboxRecord struct {
	ID            string
	ProjectID     string
	WebhookID     string
	EventType     string
	Payload       []byte
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}

// Delivery pairs a due record with its subscription's endpoint and secret.
type Delivery struct {
	OutboxRecord
	URL    string
	Secret string
}

type OutboxStore struct {
	db *DB
}

func NewOutboxStore(db *DB) *OutboxStore {
	return &OutboxStore{db: db}
}

const insertOutboxQuery = `
	INSERT INTO webhook_outbox
		(id, project_id, webhook_id, event_type, payload, status, attempts, next_attempt_at, created_at)
	VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $7)
	ON CONFLICT (id) DO NOTHING
`

// Enqueue schedules a delivery. The caller may pre-set the ID as an
// idempotency key; replays are no-ops.
func (s *OutboxStore) Enqueue(ctx context.Context, rec *OutboxRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.NextAttemptAt.IsZero() {
		rec.NextAttemptAt = now
	}
	_, err := s.db.sql.ExecContext(ctx, insertOutboxQuery,
		rec.ID, rec.ProjectID, rec.WebhookID, rec.EventType, string(rec.Payload),
		sqlTime(rec.NextAttemptAt), sqlTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: enqueue webhook delivery: %w", err)
	}
	return nil
}

const dueDeliveriesQuery = `
	SELECT o.id, o.project_id, o.webhook_id, o.event_type, o.payload, o.status,
	       o.attempts, o.next_attempt_at, o.last_error, o.created_at, w.url, w.secret
	FROM webhook_outbox o
	JOIN webhooks w ON w.id = o.webhook_id AND w.status = 'active'
	WHERE o.status = 'pending' AND o.next_attempt_at <= $1
	ORDER BY o.next_attempt_at ASC
	LIMIT $2
`

// Due returns deliveries whose retry clock has come up, oldest first.
// Deliveries whose subscription was deactivated stay parked.
func (s *OutboxStore) Due(ctx context.Context, now time.Time, limit int) ([]Delivery, error) {
	rows, err := s.db.sql.QueryContext(ctx, dueDeliveriesQuery, sqlTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("store: select due deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var payload string
		var lastErr sql.NullString
		var nextAt, created string
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.WebhookID, &d.EventType, &payload, &d.Status,
			&d.Attempts, &nextAt, &lastErr, &created, &d.URL, &d.Secret); err != nil {
			return nil, err
		}
		d.Payload = []byte(payload)
		d.LastError = lastErr.String
		d.NextAttemptAt = parseSQLTime(nextAt)
		d.CreatedAt = parseSQLTime(created)
		out = append(out, d)
	}
	return out, rows.Err()
}

const markDeliveredQuery = `
	UPDATE webhook_outbox
	SET status = 'delivered', delivered_at = $1, attempts = $2, last_error = ''
	WHERE id = $3
`

// MarkDelivered finishes a record after a 2xx response.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id string, attempts int, at time.Time) error {
	_, err := s.db.sql.ExecContext(ctx, markDeliveredQuery, sqlTime(at), attempts, id)
	if err != nil {
		return fmt.Errorf("store: mark delivery done: %w", err)
	}
	return nil
}

const markRetryQuery = `
	UPDATE webhook_outbox
	SET attempts = $1, next_attempt_at = $2, last_error = $3
	WHERE id = $4
`

// MarkRetry reschedules a failed attempt.
func (s *OutboxStore) MarkRetry(ctx context.Context, id string, attempts int, nextAt time.Time, lastError string) error {
	_, err := s.db.sql.ExecContext(ctx, markRetryQuery, attempts, sqlTime(nextAt), lastError, id)
	if err != nil {
		return fmt.Errorf("store: mark delivery retry: %w", err)
	}
	return nil
}

const markDeadQuery = `
	UPDATE webhook_outbox
	SET status = 'dead', attempts = $1, last_error = $2
	WHERE id = $3
`

// MarkDead parks a record after the final attempt failed.
func (s *OutboxStore) MarkDead(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := s.db.sql.ExecContext(ctx, markDeadQuery, attempts, lastError, id)
	if err != nil {
		return fmt.Errorf("store: mark delivery dead: %w", err)
	}
	return nil
}
