package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidRuleAction(t *testing.T) {
	assert.True(t, ValidRuleAction(ActionApprove))
	assert.True(t, ValidRuleAction(ActionHold))
	assert.True(t, ValidRuleAction(ActionBlock))
	assert.False(t, ValidRuleAction(ActionReview), "review is an outcome, not a storable action")
	assert.False(t, ValidRuleAction("deny"))
}

func TestAggregatePrecedence(t *testing.T) {
	fired := func(actions ...Action) []FiredRule {
		out := make([]FiredRule, len(actions))
		for i, a := range actions {
			out[i] = FiredRule{ID: string(a), Action: a}
		}
		return out
	}

	action, overridden := Aggregate(fired(ActionBlock, ActionApprove, ActionHold), 90, RiskLevelCritical)
	assert.Equal(t, ActionApprove, action, "approve wins over everything")
	assert.True(t, overridden)

	action, _ = Aggregate(fired(ActionHold, ActionBlock), 0, RiskLevelLow)
	assert.Equal(t, ActionBlock, action, "block wins over hold")

	action, _ = Aggregate(fired(ActionHold), 79, RiskLevelHigh)
	assert.Equal(t, ActionHold, action)

	action, _ = Aggregate(fired(ActionHold), 80, RiskLevel(80))
	assert.Equal(t, ActionReview, action, "hold escalates at critical risk")
}

func TestAggregateFallbackBands(t *testing.T) {
	cases := []struct {
		score int
		want  Action
	}{
		{0, ActionApprove},
		{34, ActionApprove},
		{35, ActionHold},
		{59, ActionHold},
		{60, ActionReview},
		{79, ActionReview},
		{80, ActionBlock},
		{100, ActionBlock},
	}
	for _, tc := range cases {
		action, overridden := Aggregate(nil, tc.score, RiskLevel(tc.score))
		assert.Equal(t, tc.want, action, "score %d", tc.score)
		assert.False(t, overridden, "score %d", tc.score)
	}
}
