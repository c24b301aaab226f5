package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigramsWordPadding(t *testing.T) {
	set := Trigrams("word")
	want := []string{"  w", " wo", "wor", "ord", "rd "}
	assert.Len(t, set, len(want))
	for _, tg := range want {
		_, ok := set[tg]
		assert.True(t, ok, "missing trigram %q", tg)
	}
}

func TestTrigramsSplitsOnPunctuation(t *testing.T) {
	assert.Equal(t, Trigrams("o'brien smith"), Trigrams("O Brien-Smith"))
}

func TestSimilarityIdentical(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("John Smith", "john smith"), 1e-9)
}

func TestSimilarityDisjoint(t *testing.T) {
	assert.Zero(t, Similarity("abc", "xyz"))
}

func TestSimilarityEmpty(t *testing.T) {
	assert.Zero(t, Similarity("", "anything"))
	assert.Zero(t, Similarity("", ""))
}

func TestSimilarityTypo(t *testing.T) {
	// One transposed pair keeps most trigrams shared.
	got := Similarity("jonathan smith", "jonathan smiht")
	assert.Greater(t, got, 0.5)
	assert.Less(t, got, 1.0)
}

func TestSimilarityMatchesPgTrgm(t *testing.T) {
	// similarity('word', 'two words') = 0.36363637 in pg_trgm: the sets
	// share 4 of 11 distinct trigrams.
	got := Similarity("word", "two words")
	assert.InDelta(t, 4.0/11.0, got, 1e-9)
}

func TestSimilarSymmetric(t *testing.T) {
	a, b := "Guadalajara Centro", "guadalajara  centro"
	assert.True(t, Similar(a, b))
	assert.Equal(t, Similarity(a, b), Similarity(b, a))
}

func TestSimilarThresholdStrict(t *testing.T) {
	assert.False(t, Similar("abc", "xyz"))
}
