package store

import (
	"context"
	"fmt"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/rules"
)

// GlobalRules is the project_id of pack-seeded rules every tenant gets.
const GlobalRules = ""

// RuleStore persists risk rules. Rows with an empty project_id are
// global defaults (seeded from the YAML pack at boot); tenant rows
// override nothing but add to the set.
type RuleStore struct {
	db *DB
}

func NewRuleStore(db *DB) *RuleStore {
	return &RuleStore{db: db}
}

const upsertRuleQuery = `
	INSERT INTO rules
		(project_id, id, name, description, action, priority, enabled, expression, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (project_id, id)
	DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		action = excluded.action,
		priority = excluded.priority,
		enabled = excluded.enabled,
		expression = excluded.expression,
		updated_at = excluded.updated_at
`

// Upsert writes a rule; seeding runs it once per pack rule per boot.
func (s *RuleStore) Upsert(ctx context.Context, projectID string, r *rules.Rule) error {
	now := time.Now().UTC()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.sql.ExecContext(ctx, upsertRuleQuery,
		projectID, r.ID, r.Name, r.Description, string(r.Action), r.Priority, r.Enabled,
		r.Expression, sqlTime(createdAt), sqlTime(now))
	if err != nil {
		return fmt.Errorf("store: upsert rule: %w", err)
	}
	return nil
}

const listRulesQuery = `
	SELECT id, name, description, action, priority, enabled, expression, created_at
	FROM rules
	WHERE project_id = $1 OR project_id = $2
	ORDER BY priority DESC, created_at ASC, id ASC
`

// ListEffective returns the global defaults plus the tenant's own rules
// in evaluation order.
func (s *RuleStore) ListEffective(ctx context.Context, projectID string) ([]rules.Rule, error) {
	rows, err := s.db.sql.QueryContext(ctx, listRulesQuery, GlobalRules, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []rules.Rule
	for rows.Next() {
		var r rules.Rule
		var action string
		var created string
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &action, &r.Priority, &r.Enabled, &r.Expression, &created); err != nil {
			return nil, err
		}
		r.Action = rules.Action(action)
		r.CreatedAt = parseSQLTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

const deleteRuleQuery = `
	DELETE FROM rules WHERE project_id = $1 AND id = $2
`

// Delete removes a tenant rule; ErrNotFound when absent.
func (s *RuleStore) Delete(ctx context.Context, projectID, id string) error {
	res, err := s.db.sql.ExecContext(ctx, deleteRuleQuery, projectID, id)
	if err != nil {
		return fmt.Errorf("store: delete rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
