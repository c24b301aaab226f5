package validate

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

// MaxNameLength bounds each name part.
const MaxNameLength = 100

// NameResult is the verdict for a personal name.
type NameResult struct {
	Valid       bool           `json:"valid"`
	Normalized  NormalizedName `json:"normalized"`
	ReasonCodes []string       `json:"reason_codes"`
}

// NormalizedName is the canonical form used for dedupe matching.
type NormalizedName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ValidateName checks a first/last name pair for plausibility: non-empty,
// bounded length, letters with common name punctuation, not numeric.
func ValidateName(firstName, lastName string) *NameResult {
	res := &NameResult{
		Normalized: NormalizedName{
			FirstName: normField(firstName),
			LastName:  normField(lastName),
		},
		ReasonCodes: []string{},
	}

	for _, part := range []string{res.Normalized.FirstName, res.Normalized.LastName} {
		switch classifyNamePart(part) {
		case nameEmpty, nameBadChars:
			res.ReasonCodes = append(res.ReasonCodes, reason.NameInvalidFormat)
		case nameTooLong:
			res.ReasonCodes = append(res.ReasonCodes, reason.NameTooLong)
		case nameNumeric:
			res.ReasonCodes = append(res.ReasonCodes, reason.NameNumeric)
		}
	}

	res.ReasonCodes = reason.Merge(res.ReasonCodes)
	res.Valid = len(res.ReasonCodes) == 0
	return res
}

// NormalizeFullName renders the dedupe key: "first last", NFC, collapsed
// whitespace, lowercased.
func NormalizeFullName(firstName, lastName string) string {
	full := strings.TrimSpace(normField(firstName) + " " + normField(lastName))
	return strings.ToLower(norm.NFC.String(full))
}

type nameVerdict int

const (
	nameOK nameVerdict = iota
	nameEmpty
	nameTooLong
	nameNumeric
	nameBadChars
)

func classifyNamePart(part string) nameVerdict {
	if part == "" {
		return nameEmpty
	}
	if len([]rune(part)) > MaxNameLength {
		return nameTooLong
	}
	hasLetter := false
	for _, r := range part {
		switch {
		case unicode.IsLetter(r) || unicode.Is(unicode.Mn, r):
			hasLetter = true
		case unicode.IsDigit(r):
			return nameNumeric
		case r == ' ' || r == '-' || r == '\'' || r == '.' || r == '’':
		default:
			return nameBadChars
		}
	}
	if !hasLetter {
		return nameBadChars
	}
	return nameOK
}
