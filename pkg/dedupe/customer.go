package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
)

// Match types reported in dedupe results.
const (
	MatchExactEmail   = "exact_email"
	MatchExactPhone   = "exact_phone"
	MatchFuzzyName    = "fuzzy_name"
	MatchExactAddress = "exact_address"
	MatchExactPostal  = "exact_postal"
	MatchFuzzyAddress = "fuzzy_address"
)

// Suggested actions derived from the top match score.
const (
	ActionMergeWith = "merge_with"
	ActionReview    = "review"
	ActionCreateNew = "create_new"
)

// MaxCustomerMatches caps the customer match list.
const MaxCustomerMatches = 5

// Match is one candidate duplicate.
type Match struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
}

// Result is a dedupe check outcome.
type Result struct {
	Matches         []Match  `json:"matches"`
	SuggestedAction string   `json:"suggested_action"`
	ReasonCodes     []string `json:"reason_codes"`
}

// CustomerInput is the probe record for customer dedupe.
type CustomerInput struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CustomerRecord is the slice of a stored customer the matcher needs.
type CustomerRecord struct {
	ID              string
	NormalizedEmail string
	NormalizedPhone string
	FirstName       string
	LastName        string
}

// CustomerIndex supplies tenant-scoped customer rows. Fuzzy candidates may
// be the whole tenant or a bounded recent window; scoring happens here so
// Postgres and lite deployments agree on every score.
type CustomerIndex interface {
	CustomersByNormalizedEmail(ctx context.Context, projectID, email string) ([]CustomerRecord, error)
	CustomersByNormalizedPhone(ctx context.Context, projectID, phone string) ([]CustomerRecord, error)
	CustomerCandidates(ctx context.Context, projectID string) ([]CustomerRecord, error)
}

// CustomerDeduper runs the customer matching pipeline.
type CustomerDeduper struct {
	index CustomerIndex
}

// NewCustomerDeduper wires the matcher.
func NewCustomerDeduper(index CustomerIndex) *CustomerDeduper {
	return &CustomerDeduper{index: index}
}

// Check matches the probe against stored customers: exact normalized email,
// exact normalized phone, then fuzzy full name. Per candidate id only the
// best score survives; the list is sorted score-descending and truncated.
func (d *CustomerDeduper) Check(ctx context.Context, projectID string, in CustomerInput) (*Result, error) {
	best := map[string]Match{}

	if in.Email != "" {
		if normalized, ok := validate.NormalizeEmail(in.Email); ok {
			rows, err := d.index.CustomersByNormalizedEmail(ctx, projectID, normalized)
			if err != nil {
				return nil, fmt.Errorf("dedupe: customers by email: %w", err)
			}
			for _, r := range rows {
				keepBest(best, Match{ID: r.ID, Score: 1.0, MatchType: MatchExactEmail})
			}
		}
	}

	if in.Phone != "" {
		if e164, _, ok := validate.NormalizePhone(in.Phone, in.Country); ok {
			rows, err := d.index.CustomersByNormalizedPhone(ctx, projectID, e164)
			if err != nil {
				return nil, fmt.Errorf("dedupe: customers by phone: %w", err)
			}
			for _, r := range rows {
				keepBest(best, Match{ID: r.ID, Score: 1.0, MatchType: MatchExactPhone})
			}
		}
	}

	probeName := validate.NormalizeFullName(in.FirstName, in.LastName)
	if probeName != "" {
		candidates, err := d.index.CustomerCandidates(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("dedupe: customer candidates: %w", err)
		}
		for _, r := range candidates {
			score := Similarity(probeName, validate.NormalizeFullName(r.FirstName, r.LastName))
			if score > FuzzyThreshold {
				keepBest(best, Match{ID: r.ID, Score: score, MatchType: MatchFuzzyName})
			}
		}
	}

	return buildResult(best, MaxCustomerMatches), nil
}

// keepBest retains the higher-scoring match per candidate id.
func keepBest(best map[string]Match, m Match) {
	if prev, ok := best[m.ID]; ok && prev.Score >= m.Score {
		return
	}
	best[m.ID] = m
}

// buildResult orders matches (score desc, id asc for determinism),
// truncates, and derives the suggested action and reason codes.
func buildResult(best map[string]Match, limit int) *Result {
	matches := make([]Match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	res := &Result{
		Matches:         matches,
		SuggestedAction: ActionCreateNew,
		ReasonCodes:     []string{},
	}
	if len(matches) == 0 {
		return res
	}

	top := matches[0].Score
	switch {
	case top == 1.0:
		res.SuggestedAction = ActionMergeWith
	case top >= FuzzyThreshold:
		res.SuggestedAction = ActionReview
	}

	var codes []string
	for _, m := range matches {
		if strings.HasPrefix(m.MatchType, "exact_") {
			codes = append(codes, reason.DedupeExactMatch)
		} else {
			codes = append(codes, reason.DedupeFuzzyMatch)
		}
	}
	res.ReasonCodes = reason.Merge(codes)
	return res
}
