package rules

// Risk levels derived from the running risk score.
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// RiskLevel buckets a score using the same cut points as the score
// fallback in Aggregate.
func RiskLevel(score int) string {
	switch {
	case score >= 80:
		return RiskLevelCritical
	case score >= 60:
		return RiskLevelHigh
	case score >= 35:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// DedupeMatch is a dedupe hit exposed to rule expressions.
type DedupeMatch struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
}

// EvaluationContext is the fixed set of facts rule expressions see. Every
// field is always bound, zero-valued when unknown, so expressions are
// total and never error on a missing attribute.
type EvaluationContext struct {
	Email                 string         `json:"email"`
	Phone                 string         `json:"phone"`
	Address               map[string]any `json:"address"`
	Name                  string         `json:"name"`
	IP                    string         `json:"ip"`
	Device                map[string]any `json:"device"`
	RiskScore             int            `json:"risk_score"`
	RiskLevel             string         `json:"risk_level"`
	Metadata              map[string]any `json:"metadata"`
	TransactionAmount     float64        `json:"transaction_amount"`
	Currency              string         `json:"currency"`
	SessionID             string         `json:"session_id"`
	CustomerDedupeMatches []DedupeMatch  `json:"customer_dedupe_matches"`
	AddressDedupeMatches  []DedupeMatch  `json:"address_dedupe_matches"`
}

// activation binds the context into CEL input. Match lists become plain
// maps so expressions can index fields without type declarations.
func (ec *EvaluationContext) activation() map[string]any {
	return map[string]any{
		"email":                   ec.Email,
		"phone":                   ec.Phone,
		"address":                 emptyIfNilMap(ec.Address),
		"name":                    ec.Name,
		"ip":                      ec.IP,
		"device":                  emptyIfNilMap(ec.Device),
		"risk_score":              ec.RiskScore,
		"risk_level":              ec.RiskLevel,
		"metadata":                emptyIfNilMap(ec.Metadata),
		"transaction_amount":      ec.TransactionAmount,
		"currency":                ec.Currency,
		"session_id":              ec.SessionID,
		"customer_dedupe_matches": matchMaps(ec.CustomerDedupeMatches),
		"address_dedupe_matches":  matchMaps(ec.AddressDedupeMatches),
	}
}

func emptyIfNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func matchMaps(ms []DedupeMatch) []any {
	out := make([]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, map[string]any{
			"id":         m.ID,
			"score":      m.Score,
			"match_type": m.MatchType,
		})
	}
	return out
}
