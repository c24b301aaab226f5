// Package store persists tenant data behind database/sql. The same
// statements run on Postgres and, in lite mode, on embedded SQLite:
// placeholders are numbered in order of appearance (both drivers bind
// them positionally) and timestamps travel as fixed-width UTC strings
// so ordering agrees across engines.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row the caller named does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrUserExists is returned when registration hits a taken email.
var ErrUserExists = errors.New("store: user already exists")

// timeLayout is RFC 3339 with a forced nine-digit fraction. Fixed width
// keeps lexicographic order equal to chronological order in TEXT columns.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the sql handle with everything the stores share.
type DB struct {
	sql  *sql.DB
	lite bool
}

// Open connects to the database named by url. postgres:// and postgresql://
// select the Postgres driver; sqlite:// selects embedded SQLite (lite mode,
// sqlite://memory for an in-memory database). Call Init before first use.
func Open(url string) (*DB, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		handle, err := sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		handle.SetMaxOpenConns(25)
		handle.SetConnMaxIdleTime(5 * time.Minute)
		return &DB{sql: handle}, nil
	case strings.HasPrefix(url, "sqlite://"):
		dsn := strings.TrimPrefix(url, "sqlite://")
		if dsn == "" || dsn == "memory" {
			dsn = ":memory:"
		}
		handle, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// Single connection: SQLite is single-writer, and :memory:
		// databases exist per connection.
		handle.SetMaxOpenConns(1)
		return &DB{sql: handle, lite: true}, nil
	default:
		return nil, fmt.Errorf("store: unsupported database url %q", redactURL(url))
	}
}

// NewDB wraps an existing handle. Tests use this with sqlmock.
func NewDB(handle *sql.DB, lite bool) *DB {
	return &DB{sql: handle, lite: lite}
}

// Lite reports whether the embedded engine is in use.
func (d *DB) Lite() bool { return d.lite }

// Ping proxies to the underlying handle.
func (d *DB) Ping(ctx context.Context) error { return d.sql.PingContext(ctx) }

// Close proxies to the underlying handle.
func (d *DB) Close() error { return d.sql.Close() }

// Init creates every table and index that is missing. Safe to run on
// every boot; existing data is never touched.
func (d *DB) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func redactURL(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "…"
	}
	return url
}

// newID returns a fresh row id.
func newID() string { return uuid.NewString() }

// sqlTime renders a timestamp for storage.
func sqlTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseSQLTime accepts the formats the two engines hand back: our own
// fixed-width layout, RFC 3339 (what database/sql renders a Postgres
// timestamp as when scanned into a string), and the bare SQLite form.
func parseSQLTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// nullTime renders an optional timestamp, NULL when zero.
func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return sqlTime(*t)
}

// parseNullTime converts a scanned optional timestamp.
func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseSQLTime(value.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// jsonText marshals v for a JSON column; nil collections become empty
// documents rather than SQL NULLs so scans stay uniform.
func jsonText(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: encode json column: %w", err)
	}
	return string(raw), nil
}

// fromJSONText unmarshals a JSON column into out, tolerating NULL/empty.
func fromJSONText(value sql.NullString, out any) error {
	if !value.Valid || value.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(value.String), out); err != nil {
		return fmt.Errorf("store: decode json column: %w", err)
	}
	return nil
}
