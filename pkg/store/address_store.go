package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
)

// Address is a per-tenant normalized address row. address_hash is the
// SHA-256 over the canonical JSON of the normalized fields and carries
// the uniqueness invariant.
type Address struct {
	ID          string
	ProjectID   string
	Line1       string
	Line2       string
	City        string
	State       string
	PostalCode  string
	Country     string
	AddressHash string
	Lat         *float64
	Lng         *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AddressStore struct {
	db *DB
}

func NewAddressStore(db *DB) *AddressStore {
	return &AddressStore{db: db}
}

const upsertAddressQuery = `
	INSERT INTO addresses
		(id, project_id, line1, line2, city, state, postal_code, country, address_hash, lat, lng, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (project_id, address_hash)
	DO UPDATE SET
		lat = excluded.lat,
		lng = excluded.lng,
		updated_at = excluded.updated_at
`

const addressIDByHashQuery = `
	SELECT id FROM addresses WHERE project_id = $1 AND address_hash = $2
`

// Upsert writes the address and returns the canonical row id for its hash.
func (s *AddressStore) Upsert(ctx context.Context, a *Address) (string, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	var lat, lng any
	if a.Lat != nil {
		lat = *a.Lat
	}
	if a.Lng != nil {
		lng = *a.Lng
	}
	if _, err := s.db.sql.ExecContext(ctx, upsertAddressQuery,
		a.ID, a.ProjectID, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country,
		a.AddressHash, lat, lng, sqlTime(a.CreatedAt), sqlTime(a.UpdatedAt)); err != nil {
		return "", fmt.Errorf("store: upsert address: %w", err)
	}

	var id string
	if err := s.db.sql.QueryRowContext(ctx, addressIDByHashQuery, a.ProjectID, a.AddressHash).Scan(&id); err != nil {
		return "", fmt.Errorf("store: resolve upserted address: %w", err)
	}
	a.ID = id
	return id, nil
}

const getAddressQuery = `
	SELECT id, project_id, line1, line2, city, state, postal_code, country, address_hash, lat, lng, created_at, updated_at
	FROM addresses
	WHERE project_id = $1 AND id = $2
`

// Get returns the address or ErrNotFound.
func (s *AddressStore) Get(ctx context.Context, projectID, id string) (*Address, error) {
	row := s.db.sql.QueryRowContext(ctx, getAddressQuery, projectID, id)

	var a Address
	var lat, lng sql.NullFloat64
	var created, updated string
	err := row.Scan(&a.ID, &a.ProjectID, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country,
		&a.AddressHash, &lat, &lng, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get address: %w", err)
	}
	if lat.Valid {
		a.Lat = &lat.Float64
	}
	if lng.Valid {
		a.Lng = &lng.Float64
	}
	a.CreatedAt = parseSQLTime(created)
	a.UpdatedAt = parseSQLTime(updated)
	return &a, nil
}

const addressesByHashQuery = `
	SELECT id, address_hash, line1, city, postal_code, country
	FROM addresses
	WHERE project_id = $1 AND address_hash = $2
`

// AddressesByHash serves the exact-hash dedupe lookup.
func (s *AddressStore) AddressesByHash(ctx context.Context, projectID, hash string) ([]dedupe.AddressRecord, error) {
	if hash == "" {
		return nil, nil
	}
	return s.records(ctx, addressesByHashQuery, projectID, hash)
}

const addressesByPostalQuery = `
	SELECT id, address_hash, line1, city, postal_code, country
	FROM addresses
	WHERE project_id = $1 AND postal_code = $2 AND country = $3
`

// AddressesByPostal serves the postal+city dedupe lookup. The city match
// is case-insensitive, so it happens here rather than in SQL (LOWER()
// collation differs between engines for non-ASCII).
func (s *AddressStore) AddressesByPostal(ctx context.Context, projectID, postalCode, cityLower, country string) ([]dedupe.AddressRecord, error) {
	if postalCode == "" {
		return nil, nil
	}
	rows, err := s.records(ctx, addressesByPostalQuery, projectID, postalCode, country)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if strings.ToLower(r.City) == cityLower {
			out = append(out, r)
		}
	}
	return out, nil
}

const addressCandidatesQuery = `
	SELECT id, address_hash, line1, city, postal_code, country
	FROM addresses
	WHERE project_id = $1
	ORDER BY created_at DESC
	LIMIT $2
`

// AddressCandidates returns a bounded recent window for fuzzy matching.
func (s *AddressStore) AddressCandidates(ctx context.Context, projectID string) ([]dedupe.AddressRecord, error) {
	return s.records(ctx, addressCandidatesQuery, projectID, candidateLimit)
}

func (s *AddressStore) records(ctx context.Context, query string, args ...any) ([]dedupe.AddressRecord, error) {
	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query addresses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []dedupe.AddressRecord
	for rows.Next() {
		var r dedupe.AddressRecord
		if err := rows.Scan(&r.ID, &r.AddressHash, &r.Line1, &r.City, &r.PostalCode, &r.Country); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
