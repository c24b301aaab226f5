// Package dedupe finds duplicate customers and addresses in a tenant's
// history using exact keys and trigram similarity, and merges confirmed
// duplicates.
package dedupe

import (
	"strings"
	"unicode"
)

// FuzzyThreshold is the similarity above which two strings count as the
// same entity. Strictly greater-than, so 0.85 exactly is not a match.
const FuzzyThreshold = 0.85

// Trigrams extracts the trigram set of s using pg_trgm's rules: lowercase,
// split on non-alphanumerics, pad each word with two leading and one
// trailing space, then take every 3-rune window.
func Trigrams(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity is the Jaccard ratio of the two trigram sets, matching what
// pg_trgm's similarity() reports for the same inputs.
func Similarity(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Similar reports whether the similarity clears the fuzzy threshold.
func Similar(a, b string) bool {
	return Similarity(a, b) > FuzzyThreshold
}
