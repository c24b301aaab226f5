package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

func TestValidateNameAccepts(t *testing.T) {
	cases := [][2]string{
		{"Ada", "Lovelace"},
		{"José", "García"},
		{"Mary Jane", "O'Brien-Smith"},
		{"J.", "Doe"},
		{"Zoë", "D’Arcy"},
	}
	for _, tc := range cases {
		res := ValidateName(tc[0], tc[1])
		assert.True(t, res.Valid, "%q %q: %v", tc[0], tc[1], res.ReasonCodes)
		assert.Empty(t, res.ReasonCodes)
	}
}

func TestValidateNameNormalizes(t *testing.T) {
	res := ValidateName("  Ada   Byron ", " Lovelace ")
	assert.Equal(t, "Ada Byron", res.Normalized.FirstName)
	assert.Equal(t, "Lovelace", res.Normalized.LastName)
}

func TestValidateNameEmpty(t *testing.T) {
	res := ValidateName("", "Lovelace")
	assert.False(t, res.Valid)
	assert.Equal(t, []string{reason.NameInvalidFormat}, res.ReasonCodes)
}

func TestValidateNameNumeric(t *testing.T) {
	res := ValidateName("1234", "Lovelace")
	assert.False(t, res.Valid)
	assert.Contains(t, res.ReasonCodes, reason.NameNumeric)
}

func TestValidateNameTooLong(t *testing.T) {
	res := ValidateName(strings.Repeat("a", MaxNameLength+1), "Lovelace")
	assert.False(t, res.Valid)
	assert.Equal(t, []string{reason.NameTooLong}, res.ReasonCodes)
}

func TestValidateNameBadCharacters(t *testing.T) {
	for _, first := range []string{"<script>", "Ada!", "#1 Fan", "---"} {
		res := ValidateName(first, "Lovelace")
		assert.False(t, res.Valid, "%q", first)
	}
}

func TestValidateNameDeduplicatesCodes(t *testing.T) {
	res := ValidateName("", "")
	assert.Equal(t, []string{reason.NameInvalidFormat}, res.ReasonCodes, "same code from both parts must appear once")
}

func TestNormalizeFullName(t *testing.T) {
	assert.Equal(t, "ada lovelace", NormalizeFullName(" Ada ", "  Lovelace "))
	assert.Equal(t, "josé garcía", NormalizeFullName("José", "García"))
	assert.Equal(t, "ada", NormalizeFullName("Ada", ""))
}
