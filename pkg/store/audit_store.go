package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrAuditChainBroken reports a verification failure in a tenant's chain.
var ErrAuditChainBroken = errors.New("store: audit hash chain is broken")

// auditGenesis seeds the prev_hash of a tenant's first entry.
const auditGenesis = "genesis"

// AuditEntry is one immutable row in a tenant's hash-chained audit log.
// entry_hash covers the previous hash, so rewriting history breaks the
// chain for every later row.
type AuditEntry struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Seq         int64           `json:"seq"`
	Actor       string          `json:"actor"`
	Action      string          `json:"action"`
	Subject     string          `json:"subject"`
	Payload     json.RawMessage `json:"payload"`
	PayloadHash string          `json:"payload_hash"`
	PrevHash    string          `json:"prev_hash"`
	EntryHash   string          `json:"entry_hash"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AuditStore appends and verifies per-tenant audit chains.
type AuditStore struct {
	db *DB
}

func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append records an action. payload is marshaled; the (project_id, seq)
// unique index serializes concurrent writers, so a collision is retried.
func (s *AuditStore) Append(ctx context.Context, projectID, actor, action, subject string, payload any) (*AuditEntry, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		entry, err := appendAudit(ctx, s.db.sql, projectID, actor, action, subject, payload)
		if err == nil {
			return entry, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("store: audit append contention: %w", lastErr)
}

const auditChainHeadQuery = `
	SELECT seq, entry_hash FROM audit_logs
	WHERE project_id = $1
	ORDER BY seq DESC
	LIMIT 1
`

const insertAuditQuery = `
	INSERT INTO audit_logs
		(id, project_id, seq, actor, action, subject, payload, payload_hash, prev_hash, entry_hash, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func appendAudit(ctx context.Context, ex execer, projectID, actor, action, subject string, payload any) (*AuditEntry, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("store: encode audit payload: %w", err)
	}

	seq := int64(1)
	prevHash := auditGenesis
	var lastSeq int64
	var lastHash string
	switch err := ex.QueryRowContext(ctx, auditChainHeadQuery, projectID).Scan(&lastSeq, &lastHash); {
	case err == nil:
		seq = lastSeq + 1
		prevHash = lastHash
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("store: read audit chain head: %w", err)
	}

	entry := &AuditEntry{
		ID:          newID(),
		ProjectID:   projectID,
		Seq:         seq,
		Actor:       actor,
		Action:      action,
		Subject:     subject,
		Payload:     payloadJSON,
		PayloadHash: contentHash(payloadJSON),
		PrevHash:    prevHash,
		CreatedAt:   time.Now().UTC(),
	}
	entry.EntryHash, err = auditEntryHash(entry)
	if err != nil {
		return nil, err
	}

	if _, err := ex.ExecContext(ctx, insertAuditQuery,
		entry.ID, entry.ProjectID, entry.Seq, entry.Actor, entry.Action, entry.Subject,
		string(entry.Payload), entry.PayloadHash, entry.PrevHash, entry.EntryHash, sqlTime(entry.CreatedAt)); err != nil {
		return nil, err
	}
	return entry, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// auditEntryHash covers everything but the row id, prev_hash included.
func auditEntryHash(e *AuditEntry) (string, error) {
	hashable := struct {
		Seq         int64     `json:"seq"`
		CreatedAt   time.Time `json:"created_at"`
		Actor       string    `json:"actor"`
		Action      string    `json:"action"`
		Subject     string    `json:"subject"`
		PayloadHash string    `json:"payload_hash"`
		PrevHash    string    `json:"prev_hash"`
	}{e.Seq, e.CreatedAt, e.Actor, e.Action, e.Subject, e.PayloadHash, e.PrevHash}

	data, err := json.Marshal(hashable)
	if err != nil {
		return "", fmt.Errorf("store: hash audit entry: %w", err)
	}
	return contentHash(data), nil
}

const auditEntriesQuery = `
	SELECT id, project_id, seq, actor, action, subject, payload, payload_hash, prev_hash, entry_hash, created_at
	FROM audit_logs
	WHERE project_id = $1
	ORDER BY seq ASC
`

// VerifyChain walks the tenant's entries in sequence order, recomputing
// every hash. Any edit, insertion, or deletion surfaces as
// ErrAuditChainBroken.
func (s *AuditStore) VerifyChain(ctx context.Context, projectID string) error {
	rows, err := s.db.sql.QueryContext(ctx, auditEntriesQuery, projectID)
	if err != nil {
		return fmt.Errorf("store: read audit chain: %w", err)
	}
	defer func() { _ = rows.Close() }()

	expectedPrev := auditGenesis
	expectedSeq := int64(1)
	for rows.Next() {
		var e AuditEntry
		var payload, created string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Seq, &e.Actor, &e.Action, &e.Subject,
			&payload, &e.PayloadHash, &e.PrevHash, &e.EntryHash, &created); err != nil {
			return err
		}
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = parseSQLTime(created)

		if e.Seq != expectedSeq {
			return fmt.Errorf("%w: expected seq %d, found %d", ErrAuditChainBroken, expectedSeq, e.Seq)
		}
		if e.PrevHash != expectedPrev {
			return fmt.Errorf("%w: entry %d prev_hash mismatch", ErrAuditChainBroken, e.Seq)
		}
		if contentHash(e.Payload) != e.PayloadHash {
			return fmt.Errorf("%w: entry %d payload hash mismatch", ErrAuditChainBroken, e.Seq)
		}
		computed, err := auditEntryHash(&e)
		if err != nil {
			return err
		}
		if computed != e.EntryHash {
			return fmt.Errorf("%w: entry %d entry hash mismatch", ErrAuditChainBroken, e.Seq)
		}
		expectedPrev = e.EntryHash
		expectedSeq++
	}
	return rows.Err()
}
