package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
)

// CredentialStore persists API keys and personal access tokens and serves
// the lookups the auth middleware needs.
type CredentialStore struct {
	db *DB
}

func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

const insertAPIKeyQuery = `
	INSERT INTO api_keys (id, project_id, prefix, key_hash, encrypted_key, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// CreateAPIKey inserts a key record. The plaintext key is never stored;
// callers keep rec.EncryptedKey as the AES-GCM sealed copy for HMAC use.
func (s *CredentialStore) CreateAPIKey(ctx context.Context, rec *auth.APIKeyRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = auth.CredentialActive
	}
	_, err := s.db.sql.ExecContext(ctx, insertAPIKeyQuery,
		rec.ID, rec.ProjectID, rec.Prefix, rec.Hash,
		hex.EncodeToString(rec.EncryptedKey), rec.Status, sqlTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert api key: %w", err)
	}
	return nil
}

const apiKeyByPrefixQuery = `
	SELECT id, project_id, prefix, key_hash, encrypted_key, status, created_at
	FROM api_keys
	WHERE prefix = $1 AND status = 'active'
	ORDER BY created_at DESC
	LIMIT 1
`

// APIKeyByPrefix returns the newest active key under the 6-char index
// prefix. The caller still compares the full hash.
func (s *CredentialStore) APIKeyByPrefix(ctx context.Context, prefix string) (*auth.APIKeyRecord, error) {
	return s.oneAPIKey(ctx, apiKeyByPrefixQuery, prefix)
}

const apiKeyByIDQuery = `
	SELECT id, project_id, prefix, key_hash, encrypted_key, status, created_at
	FROM api_keys
	WHERE id = $1
`

// APIKeyByID returns the key row, revoked or not; verification rejects
// inactive records.
func (s *CredentialStore) APIKeyByID(ctx context.Context, id string) (*auth.APIKeyRecord, error) {
	return s.oneAPIKey(ctx, apiKeyByIDQuery, id)
}

func (s *CredentialStore) oneAPIKey(ctx context.Context, query, arg string) (*auth.APIKeyRecord, error) {
	row := s.db.sql.QueryRowContext(ctx, query, arg)

	var rec auth.APIKeyRecord
	var encrypted, created string
	if err := row.Scan(&rec.ID, &rec.ProjectID, &rec.Prefix, &rec.Hash, &encrypted, &rec.Status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get api key: %w", err)
	}
	if encrypted != "" {
		raw, err := hex.DecodeString(encrypted)
		if err != nil {
			return nil, fmt.Errorf("store: corrupt encrypted_key for api key %s: %w", rec.ID, err)
		}
		rec.EncryptedKey = raw
	}
	rec.CreatedAt = parseSQLTime(created)
	return &rec, nil
}

const listAPIKeysQuery = `
	SELECT id, project_id, prefix, key_hash, encrypted_key, status, created_at
	FROM api_keys
	WHERE project_id = $1
	ORDER BY created_at DESC
`

// ListAPIKeys returns every key of the tenant, newest first.
func (s *CredentialStore) ListAPIKeys(ctx context.Context, projectID string) ([]auth.APIKeyRecord, error) {
	rows, err := s.db.sql.QueryContext(ctx, listAPIKeysQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []auth.APIKeyRecord
	for rows.Next() {
		var rec auth.APIKeyRecord
		var encrypted, created string
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.Prefix, &rec.Hash, &encrypted, &rec.Status, &created); err != nil {
			return nil, err
		}
		if encrypted != "" {
			raw, err := hex.DecodeString(encrypted)
			if err != nil {
				return nil, fmt.Errorf("store: corrupt encrypted_key for api key %s: %w", rec.ID, err)
			}
			rec.EncryptedKey = raw
		}
		rec.CreatedAt = parseSQLTime(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

const revokeAPIKeyQuery = `
	UPDATE api_keys SET status = 'revoked', revoked_at = $1
	WHERE id = $2 AND project_id = $3 AND status = 'active'
`

// RevokeAPIKey marks the key revoked. Revoking twice is ErrNotFound.
func (s *CredentialStore) RevokeAPIKey(ctx context.Context, projectID, id string) error {
	res, err := s.db.sql.ExecContext(ctx, revokeAPIKeyQuery, sqlTime(time.Now()), id, projectID)
	if err != nil {
		return fmt.Errorf("store: revoke api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const insertPATQuery = `
	INSERT INTO personal_access_tokens
		(id, user_id, project_id, secret_hash, scopes, ip_allowlist, status, expires_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// CreatePAT inserts a personal access token record.
func (s *CredentialStore) CreatePAT(ctx context.Context, rec *auth.PATRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = auth.CredentialActive
	}
	scopes, err := jsonText(rec.Scopes)
	if err != nil {
		return err
	}
	allowlist, err := jsonText(rec.IPAllowlist)
	if err != nil {
		return err
	}
	_, err = s.db.sql.ExecContext(ctx, insertPATQuery,
		rec.ID, rec.UserID, rec.ProjectID, rec.SecretHash,
		scopes, allowlist, rec.Status, nullTime(rec.ExpiresAt), sqlTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert personal access token: %w", err)
	}
	return nil
}

const patByTokenIDQuery = `
	SELECT id, user_id, project_id, secret_hash, scopes, ip_allowlist, status, expires_at, created_at
	FROM personal_access_tokens
	WHERE id = $1
`

// PATByTokenID returns the token row or ErrNotFound.
func (s *CredentialStore) PATByTokenID(ctx context.Context, tokenID string) (*auth.PATRecord, error) {
	row := s.db.sql.QueryRowContext(ctx, patByTokenIDQuery, tokenID)

	var rec auth.PATRecord
	var scopes, allowlist sql.NullString
	var expires sql.NullString
	var created string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ProjectID, &rec.SecretHash, &scopes, &allowlist, &rec.Status, &expires, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get personal access token: %w", err)
	}
	if err := fromJSONText(scopes, &rec.Scopes); err != nil {
		return nil, err
	}
	if err := fromJSONText(allowlist, &rec.IPAllowlist); err != nil {
		return nil, err
	}
	rec.ExpiresAt = parseNullTime(expires)
	rec.CreatedAt = parseSQLTime(created)
	return &rec, nil
}

const touchPATQuery = `
	UPDATE personal_access_tokens SET last_used_at = $1 WHERE id = $2
`

// TouchPAT records the last successful use. Best-effort; callers may
// ignore the error.
func (s *CredentialStore) TouchPAT(ctx context.Context, tokenID string, at time.Time) error {
	_, err := s.db.sql.ExecContext(ctx, touchPATQuery, sqlTime(at), tokenID)
	return err
}

const revokePATQuery = `
	UPDATE personal_access_tokens SET status = 'revoked'
	WHERE id = $1 AND project_id = $2 AND status = 'active'
`

// RevokePAT marks the token revoked.
func (s *CredentialStore) RevokePAT(ctx context.Context, projectID, tokenID string) error {
	res, err := s.db.sql.ExecContext(ctx, revokePATQuery, tokenID, projectID)
	if err != nil {
		return fmt.Errorf("store: revoke personal access token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
