package dedupe

import (
	"context"
	"fmt"
	"strings"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
)

// MaxAddressMatches caps the address match list.
const MaxAddressMatches = 3

// AddressRecord is the slice of a stored address the matcher needs.
type AddressRecord struct {
	ID          string
	AddressHash string
	Line1       string
	City        string
	PostalCode  string
	Country     string
}

// AddressIndex supplies tenant-scoped address rows.
type AddressIndex interface {
	AddressesByHash(ctx context.Context, projectID, hash string) ([]AddressRecord, error)
	AddressesByPostal(ctx context.Context, projectID, postalCode, cityLower, country string) ([]AddressRecord, error)
	AddressCandidates(ctx context.Context, projectID string) ([]AddressRecord, error)
}

// AddressDeduper runs the address matching pipeline.
type AddressDeduper struct {
	index AddressIndex
}

// NewAddressDeduper wires the matcher.
func NewAddressDeduper(index AddressIndex) *AddressDeduper {
	return &AddressDeduper{index: index}
}

// Check matches the probe against stored addresses: exact canonical hash,
// exact (postal, city, country), then fuzzy on street line or city.
func (d *AddressDeduper) Check(ctx context.Context, projectID string, in validate.AddressInput) (*Result, error) {
	normalized := validate.NormalizeAddress(in)
	best := map[string]Match{}

	hash := validate.AddressHash(normalized)
	rows, err := d.index.AddressesByHash(ctx, projectID, hash)
	if err != nil {
		return nil, fmt.Errorf("dedupe: addresses by hash: %w", err)
	}
	for _, r := range rows {
		keepBest(best, Match{ID: r.ID, Score: 1.0, MatchType: MatchExactAddress})
	}

	if normalized.PostalCode != "" && normalized.City != "" {
		rows, err := d.index.AddressesByPostal(ctx, projectID, normalized.PostalCode, strings.ToLower(normalized.City), normalized.Country)
		if err != nil {
			return nil, fmt.Errorf("dedupe: addresses by postal: %w", err)
		}
		for _, r := range rows {
			keepBest(best, Match{ID: r.ID, Score: 1.0, MatchType: MatchExactPostal})
		}
	}

	candidates, err := d.index.AddressCandidates(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("dedupe: address candidates: %w", err)
	}
	for _, r := range candidates {
		score := Similarity(normalized.Line1, r.Line1)
		if citySim := Similarity(normalized.City, r.City); citySim > score {
			score = citySim
		}
		if score > FuzzyThreshold {
			keepBest(best, Match{ID: r.ID, Score: score, MatchType: MatchFuzzyAddress})
		}
	}

	return buildResult(best, MaxAddressMatches), nil
}
