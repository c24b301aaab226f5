package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

// Merge target types.
const (
	MergeCustomers = "customer"
	MergeAddresses = "address"
)

// Sentinel errors the HTTP layer maps to envelope codes.
var (
	ErrUnknownMergeType   = errors.New("dedupe: unknown merge type")
	ErrInvalidMergeIDs    = errors.New("dedupe: merge needs a canonical id and at least one duplicate id")
	ErrCanonicalNotFound  = errors.New("dedupe: canonical record not found")
	ErrDuplicateNotFound  = errors.New("dedupe: duplicate record not found")
)

// MergeStore folds duplicate records into a canonical one inside a single
// transaction: dependent rows are re-pointed, duplicates deleted, and the
// merge recorded in both the event log and the audit log, so readers never
// observe a half-merged tenant.
type MergeStore interface {
	MergeCustomerRecords(ctx context.Context, projectID, canonicalID string, duplicateIDs []string) error
	MergeAddressRecords(ctx context.Context, projectID, canonicalID string, duplicateIDs []string) error
}

// MergeResult reports a completed merge.
type MergeResult struct {
	Type        string   `json:"type"`
	CanonicalID string   `json:"canonical_id"`
	MergedIDs   []string `json:"merged_ids"`
	ReasonCodes []string `json:"reason_codes"`
}

// Merger validates and executes merge requests.
type Merger struct {
	store MergeStore
}

// NewMerger wires the merger.
func NewMerger(store MergeStore) *Merger {
	return &Merger{store: store}
}

// Merge folds ids into canonicalID. The canonical id is dropped from ids
// if present; duplicate ids are de-duplicated.
func (m *Merger) Merge(ctx context.Context, projectID, typ, canonicalID string, ids []string) (*MergeResult, error) {
	if canonicalID == "" {
		return nil, ErrInvalidMergeIDs
	}

	seen := map[string]bool{canonicalID: true}
	duplicates := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		duplicates = append(duplicates, id)
	}
	if len(duplicates) == 0 {
		return nil, ErrInvalidMergeIDs
	}

	var err error
	switch typ {
	case MergeCustomers:
		err = m.store.MergeCustomerRecords(ctx, projectID, canonicalID, duplicates)
	case MergeAddresses:
		err = m.store.MergeAddressRecords(ctx, projectID, canonicalID, duplicates)
	default:
		return nil, ErrUnknownMergeType
	}
	if err != nil {
		return nil, fmt.Errorf("dedupe: merge %s: %w", typ, err)
	}

	return &MergeResult{
		Type:        typ,
		CanonicalID: canonicalID,
		MergedIDs:   duplicates,
		ReasonCodes: []string{reason.DedupeMerged},
	}, nil
}
