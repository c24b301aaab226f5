package rules

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return e
}

func enabledRule(id string, priority int, action Action, expr string) Rule {
	return Rule{ID: id, Name: id, Action: action, Priority: priority, Enabled: true, Expression: expr}
}

func TestEvaluateSingleRuleFires(t *testing.T) {
	e := newEngine(t)
	out := e.Evaluate(context.Background(), []Rule{
		enabledRule("r1", 10, ActionHold, `transaction_amount > 100.0`),
	}, &EvaluationContext{TransactionAmount: 250})

	require.Len(t, out.Fired, 1)
	assert.Equal(t, "r1", out.Fired[0].ID)
	assert.True(t, out.Overridden)
	assert.Equal(t, ActionHold, out.Action)
}

func TestEvaluateApproveOverridesBlock(t *testing.T) {
	e := newEngine(t)
	out := e.Evaluate(context.Background(), []Rule{
		enabledRule("block-all", 100, ActionBlock, `true`),
		enabledRule("vip", 1, ActionApprove, `"vip" in metadata && metadata["vip"] == true`),
	}, &EvaluationContext{Metadata: map[string]any{"vip": true}})

	assert.Equal(t, ActionApprove, out.Action)
	assert.True(t, out.Overridden)
}

func TestEvaluateBlockBeatsHold(t *testing.T) {
	e := newEngine(t)
	out := e.Evaluate(context.Background(), []Rule{
		enabledRule("hold", 100, ActionHold, `true`),
		enabledRule("block", 1, ActionBlock, `true`),
	}, &EvaluationContext{})

	assert.Equal(t, ActionBlock, out.Action)
}

func TestEvaluateHoldEscalatesToReviewAtCriticalRisk(t *testing.T) {
	e := newEngine(t)
	rules := []Rule{enabledRule("hold", 1, ActionHold, `true`)}

	out := e.Evaluate(context.Background(), rules, &EvaluationContext{RiskScore: 85, RiskLevel: RiskLevel(85)})
	assert.Equal(t, ActionReview, out.Action)

	out = e.Evaluate(context.Background(), rules, &EvaluationContext{RiskScore: 30, RiskLevel: RiskLevel(30)})
	assert.Equal(t, ActionHold, out.Action)
}

func TestEvaluateScoreFallback(t *testing.T) {
	e := newEngine(t)
	cases := []struct {
		score int
		want  Action
	}{
		{85, ActionBlock},
		{65, ActionReview},
		{40, ActionHold},
		{10, ActionApprove},
	}
	for _, tc := range cases {
		out := e.Evaluate(context.Background(), nil, &EvaluationContext{RiskScore: tc.score})
		assert.Equal(t, tc.want, out.Action, "score %d", tc.score)
		assert.False(t, out.Overridden, "score %d", tc.score)
	}
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	e := newEngine(t)
	r := enabledRule("off", 1, ActionBlock, `true`)
	r.Enabled = false

	out := e.Evaluate(context.Background(), []Rule{r}, &EvaluationContext{})
	assert.Empty(t, out.Fired)
	assert.Equal(t, ActionApprove, out.Action)
}

func TestEvaluateSkipsBrokenRules(t *testing.T) {
	e := newEngine(t)
	out := e.Evaluate(context.Background(), []Rule{
		enabledRule("bad-compile", 3, ActionBlock, `no_such_field > 1`),
		enabledRule("runtime-error", 2, ActionBlock, `1 / (risk_score - risk_score) == 1`),
		enabledRule("not-bool", 1, ActionBlock, `risk_score + 1`),
		enabledRule("good", 0, ActionHold, `true`),
	}, &EvaluationContext{})

	assert.ElementsMatch(t, []string{"bad-compile", "runtime-error", "not-bool"}, out.Skipped)
	require.Len(t, out.Fired, 1)
	assert.Equal(t, "good", out.Fired[0].ID)
	assert.Equal(t, ActionHold, out.Action)
}

func TestEvaluateDedupeMatchExpressions(t *testing.T) {
	e := newEngine(t)
	out := e.Evaluate(context.Background(), []Rule{
		enabledRule("exact-dup", 1, ActionBlock, `customer_dedupe_matches.exists(m, m.score == 1.0)`),
	}, &EvaluationContext{
		CustomerDedupeMatches: []DedupeMatch{{ID: "cus_1", Score: 1.0, MatchType: "exact_email"}},
	})

	assert.Equal(t, ActionBlock, out.Action)
}

func TestEvaluateEmptyContextIsTotal(t *testing.T) {
	e := newEngine(t)
	out := e.Evaluate(context.Background(), []Rule{
		enabledRule("probe", 1, ActionHold,
			`email == "" && size(customer_dedupe_matches) == 0 && size(metadata) == 0 && transaction_amount == 0.0`),
	}, &EvaluationContext{})

	require.Len(t, out.Fired, 1, "zero-valued context must still bind every field")
}

func TestSortRulesOrdering(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rs := []Rule{
		{ID: "c", Priority: 5, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "a", Priority: 10, CreatedAt: base.Add(time.Hour)},
		{ID: "b", Priority: 10, CreatedAt: base},
		{ID: "d", Priority: 5, CreatedAt: base.Add(2 * time.Hour)},
	}
	SortRules(rs)

	got := []string{rs[0].ID, rs[1].ID, rs[2].ID, rs[3].ID}
	assert.Equal(t, []string{"b", "a", "c", "d"}, got, "priority desc, then created asc, then id")
}

func TestProgramCacheReuse(t *testing.T) {
	e := newEngine(t)
	ec := &EvaluationContext{TransactionAmount: 10}
	rules := []Rule{enabledRule("r", 1, ActionHold, `transaction_amount > 5.0`)}

	e.Evaluate(context.Background(), rules, ec)
	e.Evaluate(context.Background(), rules, ec)

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.programs, 1)
}

func TestCatalogEntriesCompile(t *testing.T) {
	e := newEngine(t)
	for _, entry := range Catalog() {
		assert.NoError(t, e.Compile(entry.Expression), "catalog entry %s", entry.ID)
		assert.True(t, ValidRuleAction(entry.Action), "catalog entry %s", entry.ID)
	}
}

func TestRiskLevelBands(t *testing.T) {
	assert.Equal(t, RiskLevelLow, RiskLevel(0))
	assert.Equal(t, RiskLevelLow, RiskLevel(34))
	assert.Equal(t, RiskLevelMedium, RiskLevel(35))
	assert.Equal(t, RiskLevelHigh, RiskLevel(60))
	assert.Equal(t, RiskLevelCritical, RiskLevel(80))
	assert.Equal(t, RiskLevelCritical, RiskLevel(100))
}
