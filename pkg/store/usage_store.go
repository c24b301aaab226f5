package store

import (
	"context"
	"fmt"
	"time"
)

// usageDay keys counters by UTC calendar day.
const usageDay = "2006-01-02"

// UsageRow is one (endpoint, day) counter for a tenant.
type UsageRow struct {
	Endpoint string `json:"endpoint"`
	Day      string `json:"day"`
	Count    int64  `json:"count"`
}

// UsageStore meters requests per tenant, endpoint, and day.
type UsageStore struct {
	db *DB
}

func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

const incrementUsageQuery = `
	INSERT INTO usage_counters (project_id, endpoint, day, count)
	VALUES ($1, $2, $3, 1)
	ON CONFLICT (project_id, endpoint, day)
	DO UPDATE SET count = usage_counters.count + 1
`

// Increment bumps today's counter for the endpoint.
func (s *UsageStore) Increment(ctx context.Context, projectID, endpoint string, at time.Time) error {
	_, err := s.db.sql.ExecContext(ctx, incrementUsageQuery, projectID, endpoint, at.UTC().Format(usageDay))
	if err != nil {
		return fmt.Errorf("store: increment usage: %w", err)
	}
	return nil
}

const usageSinceQuery = `
	SELECT endpoint, day, count
	FROM usage_counters
	WHERE project_id = $1 AND day >= $2
	ORDER BY day ASC, endpoint ASC
`

// Since returns the tenant's counters from the given day forward.
func (s *UsageStore) Since(ctx context.Context, projectID string, from time.Time) ([]UsageRow, error) {
	rows, err := s.db.sql.QueryContext(ctx, usageSinceQuery, projectID, from.UTC().Format(usageDay))
	if err != nil {
		return nil, fmt.Errorf("store: query usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []UsageRow
	for rows.Next() {
		var r UsageRow
		if err := rows.Scan(&r.Endpoint, &r.Day, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
