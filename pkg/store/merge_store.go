package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
)

// MergeStore collapses duplicate customers or addresses onto a canonical
// row. Each merge is one transaction: dependent orders are re-pointed,
// duplicates deleted, and the event-log and audit-log entries land
// atomically with the data change.
type MergeStore struct {
	db *DB
}

func NewMergeStore(db *DB) *MergeStore {
	return &MergeStore{db: db}
}

const customerExistsQuery = `
	SELECT 1 FROM customers WHERE project_id = $1 AND id = $2
`

const repointOrderCustomerQuery = `
	UPDATE orders SET customer_id = $1 WHERE project_id = $2 AND customer_id = $3
`

const deleteCustomerQuery = `
	DELETE FROM customers WHERE project_id = $1 AND id = $2
`

// MergeCustomerRecords implements dedupe.MergeStore.
func (s *MergeStore) MergeCustomerRecords(ctx context.Context, projectID, canonicalID string, duplicateIDs []string) error {
	return s.merge(ctx, mergeSpec{
		projectID:    projectID,
		canonicalID:  canonicalID,
		duplicateIDs: duplicateIDs,
		kind:         dedupe.MergeCustomers,
		existsQuery:  customerExistsQuery,
		repointQuery: repointOrderCustomerQuery,
		deleteQuery:  deleteCustomerQuery,
	})
}

const addressExistsQuery = `
	SELECT 1 FROM addresses WHERE project_id = $1 AND id = $2
`

const repointOrderAddressQuery = `
	UPDATE orders SET address_id = $1 WHERE project_id = $2 AND address_id = $3
`

const deleteAddressQuery = `
	DELETE FROM addresses WHERE project_id = $1 AND id = $2
`

// MergeAddressRecords implements dedupe.MergeStore.
func (s *MergeStore) MergeAddressRecords(ctx context.Context, projectID, canonicalID string, duplicateIDs []string) error {
	return s.merge(ctx, mergeSpec{
		projectID:    projectID,
		canonicalID:  canonicalID,
		duplicateIDs: duplicateIDs,
		kind:         dedupe.MergeAddresses,
		existsQuery:  addressExistsQuery,
		repointQuery: repointOrderAddressQuery,
		deleteQuery:  deleteAddressQuery,
	})
}

type mergeSpec struct {
	projectID    string
	canonicalID  string
	duplicateIDs []string
	kind         string
	existsQuery  string
	repointQuery string
	deleteQuery  string
}

func (s *MergeStore) merge(ctx context.Context, spec mergeSpec) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := rowExists(ctx, tx, spec.existsQuery, spec.projectID, spec.canonicalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dedupe.ErrCanonicalNotFound
		}
		return fmt.Errorf("store: check canonical: %w", err)
	}
	for _, dup := range spec.duplicateIDs {
		if err := rowExists(ctx, tx, spec.existsQuery, spec.projectID, dup); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", dedupe.ErrDuplicateNotFound, dup)
			}
			return fmt.Errorf("store: check duplicate: %w", err)
		}
	}

	for _, dup := range spec.duplicateIDs {
		if _, err := tx.ExecContext(ctx, spec.repointQuery, spec.canonicalID, spec.projectID, dup); err != nil {
			return fmt.Errorf("store: re-point orders: %w", err)
		}
		if _, err := tx.ExecContext(ctx, spec.deleteQuery, spec.projectID, dup); err != nil {
			return fmt.Errorf("store: delete duplicate: %w", err)
		}
	}

	entry := &events.Entry{
		ProjectID: spec.projectID,
		Type:      events.TypeMerge,
		Endpoint:  "/v1/dedupe/merge",
		Status:    "ok",
		Meta: map[string]any{
			"merge_type":   spec.kind,
			"canonical_id": spec.canonicalID,
			"merged_ids":   spec.duplicateIDs,
		},
	}
	if err := insertLog(ctx, tx, entry); err != nil {
		return err
	}
	if _, err := appendAudit(ctx, tx, spec.projectID, "", "dedupe.merge", spec.kind+":"+spec.canonicalID, entry.Meta); err != nil {
		return fmt.Errorf("store: audit merge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit merge: %w", err)
	}
	return nil
}

func rowExists(ctx context.Context, ex execer, query string, args ...any) error {
	var one int
	return ex.QueryRowContext(ctx, query, args...).Scan(&one)
}
