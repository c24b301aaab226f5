package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
)

// execer is satisfied by *sql.DB and *sql.Tx so appends can join a
// larger transaction (merge writes its log entry atomically).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventStore persists the append-only tenant event log.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

const insertLogQuery = `
	INSERT INTO logs (id, project_id, type, endpoint, reason_codes, status, meta, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Append writes one entry. A missing ID or timestamp is filled in.
func (s *EventStore) Append(ctx context.Context, e *events.Entry) error {
	return insertLog(ctx, s.db.sql, e)
}

func insertLog(ctx context.Context, ex execer, e *events.Entry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	codes, err := jsonText(e.ReasonCodes)
	if err != nil {
		return err
	}
	meta, err := jsonText(e.Meta)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, insertLogQuery,
		e.ID, e.ProjectID, e.Type, e.Endpoint, codes, e.Status, meta, sqlTime(e.CreatedAt)); err != nil {
		return fmt.Errorf("store: insert log entry: %w", err)
	}
	return nil
}

const listLogsFirstQuery = `
	SELECT id, project_id, type, endpoint, reason_codes, status, meta, created_at
	FROM logs
	WHERE project_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2
`

const listLogsAfterQuery = `
	SELECT id, project_id, type, endpoint, reason_codes, status, meta, created_at
	FROM logs
	WHERE project_id = $1 AND (created_at < $2 OR (created_at = $3 AND id < $4))
	ORDER BY created_at DESC, id DESC
	LIMIT $5
`

// List pages the tenant's log newest-first. A nil cursor starts at the
// top; the keyset comparison works on the stored fixed-width timestamps.
func (s *EventStore) List(ctx context.Context, projectID string, after *events.Cursor, limit int) ([]events.Entry, error) {
	var rows *sql.Rows
	var err error
	if after == nil {
		rows, err = s.db.sql.QueryContext(ctx, listLogsFirstQuery, projectID, limit)
	} else {
		at := sqlTime(after.CreatedAt)
		rows, err = s.db.sql.QueryContext(ctx, listLogsAfterQuery, projectID, at, at, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list logs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanLogRows(rows)
}

const deleteLogQuery = `
	DELETE FROM logs WHERE project_id = $1 AND id = $2
`

// Delete removes one entry; ErrNotFound when the tenant has no such row.
func (s *EventStore) Delete(ctx context.Context, projectID, id string) error {
	res, err := s.db.sql.ExecContext(ctx, deleteLogQuery, projectID, id)
	if err != nil {
		return fmt.Errorf("store: delete log entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const expiredLogsQuery = `
	SELECT id, project_id, type, endpoint, reason_codes, status, meta, created_at
	FROM logs
	WHERE created_at < $1
	ORDER BY created_at ASC
	LIMIT $2
`

// Expired returns up to limit entries older than cutoff, oldest first,
// across all tenants. The sweeper archives them before deletion.
func (s *EventStore) Expired(ctx context.Context, cutoff time.Time, limit int) ([]events.Entry, error) {
	rows, err := s.db.sql.QueryContext(ctx, expiredLogsQuery, sqlTime(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("store: select expired logs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanLogRows(rows)
}

const deleteLogsBatchQuery = `
	DELETE FROM logs WHERE id = $1
`

// DeleteByIDs removes swept entries. Runs one statement per id to stay
// portable; sweep batches are small.
func (s *EventStore) DeleteByIDs(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.sql.ExecContext(ctx, deleteLogsBatchQuery, id); err != nil {
			return fmt.Errorf("store: delete swept logs: %w", err)
		}
	}
	return nil
}

func scanLogRows(rows *sql.Rows) ([]events.Entry, error) {
	var out []events.Entry
	for rows.Next() {
		var e events.Entry
		var codes, meta sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Type, &e.Endpoint, &codes, &e.Status, &meta, &created); err != nil {
			return nil, err
		}
		if err := fromJSONText(codes, &e.ReasonCodes); err != nil {
			return nil, err
		}
		if err := fromJSONText(meta, &e.Meta); err != nil {
			return nil, err
		}
		e.CreatedAt = parseSQLTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
