package rules

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePack = `
rules:
  - id: high-value-hold
    name: Hold high-value orders
    description: Manual review above 1000
    action: hold
    priority: 50
    expression: transaction_amount > 1000.0
  - id: vip-approve
    name: Approve VIP customers
    action: approve
    priority: 100
    enabled: false
    expression: '"vip" in metadata && metadata["vip"] == true'
    created_at: 2025-03-01T00:00:00Z
`

func TestParsePack(t *testing.T) {
	e := newEngine(t)
	rs, err := ParsePack([]byte(samplePack), e)
	require.NoError(t, err)
	require.Len(t, rs, 2)

	assert.Equal(t, "high-value-hold", rs[0].ID)
	assert.Equal(t, ActionHold, rs[0].Action)
	assert.True(t, rs[0].Enabled, "enabled defaults to true")
	assert.True(t, rs[0].CreatedAt.IsZero(), "created_at stays zero when the pack omits it")

	assert.False(t, rs[1].Enabled)
	assert.Equal(t, 2025, rs[1].CreatedAt.Year())
}

func TestParsePackRejectsBadPacks(t *testing.T) {
	e := newEngine(t)
	cases := map[string]string{
		"missing id":     "rules:\n  - name: x\n    action: hold\n    expression: 'true'\n",
		"missing name":   "rules:\n  - id: r1\n    action: hold\n    expression: 'true'\n",
		"bad action":     "rules:\n  - id: r1\n    name: x\n    action: review\n    expression: 'true'\n",
		"no expression":  "rules:\n  - id: r1\n    name: x\n    action: hold\n",
		"bad expression": "rules:\n  - id: r1\n    name: x\n    action: hold\n    expression: 'nonsense('\n",
		"duplicate id":   "rules:\n  - id: r1\n    name: x\n    action: hold\n    expression: 'true'\n  - id: r1\n    name: y\n    action: block\n    expression: 'true'\n",
		"not yaml":       "{{{",
	}
	for name, doc := range cases {
		_, err := ParsePack([]byte(doc), e)
		assert.Error(t, err, name)
	}
}

func TestLoadPack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePack), 0o600))

	e, err := NewEngine(slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	rs, err := LoadPack(path, e)
	require.NoError(t, err)
	assert.Len(t, rs, 2)

	_, err = LoadPack(filepath.Join(dir, "missing.yaml"), e)
	assert.Error(t, err)
}
