package store

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
)

// ReferenceStore serves the read-only geo reference tables: country
// bounding boxes for the out-of-bounds check and the GeoNames postal
// table for postal↔city coherence.
type ReferenceStore struct {
	db *DB
}

func NewReferenceStore(db *DB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

const countryBoundsQuery = `
	SELECT min_lat, max_lat, min_lng, max_lng
	FROM countries_bounding_boxes
	WHERE country_code = $1
`

// CountryBounds returns the country's box, or nil when the table does
// not know the country (the validator then passes the bounds check).
func (s *ReferenceStore) CountryBounds(ctx context.Context, country string) (*validate.Bounds, error) {
	row := s.db.sql.QueryRowContext(ctx, countryBoundsQuery, strings.ToUpper(country))

	var b validate.Bounds
	if err := row.Scan(&b.MinLat, &b.MaxLat, &b.MinLng, &b.MaxLng); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: country bounds: %w", err)
	}
	return &b, nil
}

const postalCitiesQuery = `
	SELECT place_name
	FROM geonames_postal
	WHERE country = $1 AND postal_code = $2
`

// PostalCities returns the place names registered for a postal code.
// Empty means the reference has no data for it.
func (s *ReferenceStore) PostalCities(ctx context.Context, country, postalCode string) ([]string, error) {
	rows, err := s.db.sql.QueryContext(ctx, postalCitiesQuery, strings.ToUpper(country), postalCode)
	if err != nil {
		return nil, fmt.Errorf("store: postal cities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

const upsertCountryBoundsQuery = `
	INSERT INTO countries_bounding_boxes (country_code, min_lat, max_lat, min_lng, max_lng)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (country_code)
	DO UPDATE SET
		min_lat = excluded.min_lat,
		max_lat = excluded.max_lat,
		min_lng = excluded.min_lng,
		max_lng = excluded.max_lng
`

// ImportCountryBounds loads CSV rows of
// country_code,min_lat,max_lat,min_lng,max_lng. A header line is
// skipped. Returns the number of rows written.
func (s *ReferenceStore) ImportCountryBounds(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true

	count := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("store: read bounds csv: %w", err)
		}
		minLat, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			if count == 0 {
				continue // header
			}
			return count, fmt.Errorf("store: bounds csv row %d: %w", count+1, err)
		}
		maxLat, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return count, fmt.Errorf("store: bounds csv row %d: %w", count+1, err)
		}
		minLng, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return count, fmt.Errorf("store: bounds csv row %d: %w", count+1, err)
		}
		maxLng, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return count, fmt.Errorf("store: bounds csv row %d: %w", count+1, err)
		}
		code := strings.ToUpper(strings.TrimSpace(record[0]))
		if code == "" {
			continue
		}
		if _, err := s.db.sql.ExecContext(ctx, upsertCountryBoundsQuery, code, minLat, maxLat, minLng, maxLng); err != nil {
			return count, fmt.Errorf("store: upsert bounds for %s: %w", code, err)
		}
		count++
	}
	return count, nil
}

const upsertPostalQuery = `
	INSERT INTO geonames_postal (country, postal_code, place_name, admin1)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (country, postal_code, place_name) DO NOTHING
`

// ImportGeonamesPostal loads the tab-separated GeoNames postal dump
// (country code, postal code, place name, admin1, …). Short or blank
// lines are skipped. Returns the number of rows written.
func (s *ReferenceStore) ImportGeonamesPostal(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	count := 0
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 3 {
			continue
		}
		country := strings.ToUpper(strings.TrimSpace(fields[0]))
		postal := strings.TrimSpace(fields[1])
		place := strings.TrimSpace(fields[2])
		if country == "" || postal == "" || place == "" {
			continue
		}
		admin1 := ""
		if len(fields) > 3 {
			admin1 = strings.TrimSpace(fields[3])
		}
		if _, err := s.db.sql.ExecContext(ctx, upsertPostalQuery, country, postal, place, admin1); err != nil {
			return count, fmt.Errorf("store: upsert postal line %d: %w", line, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("store: read postal dump: %w", err)
	}
	return count, nil
}
