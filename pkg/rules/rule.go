// Package rules evaluates tenant-configurable risk rules over a typed
// evaluation context and aggregates their actions into a single verdict.
package rules

import (
	"sort"
	"time"
)

// Action is what a rule wants done with the order being evaluated.
type Action string

const (
	ActionApprove Action = "approve"
	ActionHold    Action = "hold"
	ActionBlock   Action = "block"
	// ActionReview only appears in aggregated outcomes; rules themselves
	// carry approve, hold, or block.
	ActionReview Action = "review"
)

// ValidRuleAction reports whether a is allowed on a stored rule.
func ValidRuleAction(a Action) bool {
	return a == ActionApprove || a == ActionHold || a == ActionBlock
}

// Rule is one configurable risk rule.
type Rule struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Action      Action    `json:"action" yaml:"action"`
	Priority    int       `json:"priority" yaml:"priority"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	Expression  string    `json:"expression" yaml:"expression"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// SortRules orders rules for evaluation: priority descending, creation
// time ascending, id ascending as the final tie-break.
func SortRules(rs []Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority > rs[j].Priority
		}
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

// FiredRule records a rule whose expression evaluated true.
type FiredRule struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Action Action `json:"action"`
}

// Outcome is the aggregated result of one engine run.
type Outcome struct {
	// Action is the aggregate per the precedence rules; it may be
	// ActionReview, which order evaluation maps to hold.
	Action Action `json:"action"`
	// Overridden is true when at least one rule fired, meaning Action
	// comes from rules rather than the score fallback.
	Overridden bool        `json:"overridden"`
	Fired      []FiredRule `json:"fired"`
	// Skipped lists rule ids whose evaluation errored or timed out.
	Skipped []string `json:"skipped,omitempty"`
}

// Aggregate folds fired-rule actions with the risk signals into one
// action. Precedence: any approve wins; else any block; else any hold
// (escalated to review at critical risk); else the score decides.
func Aggregate(fired []FiredRule, riskScore int, riskLevel string) (Action, bool) {
	var anyApprove, anyBlock, anyHold bool
	for _, f := range fired {
		switch f.Action {
		case ActionApprove:
			anyApprove = true
		case ActionBlock:
			anyBlock = true
		case ActionHold:
			anyHold = true
		}
	}

	switch {
	case anyApprove:
		return ActionApprove, true
	case anyBlock:
		return ActionBlock, true
	case anyHold:
		if riskScore >= 80 || riskLevel == RiskLevelCritical {
			return ActionReview, true
		}
		return ActionHold, true
	}

	switch {
	case riskScore >= 80:
		return ActionBlock, false
	case riskScore >= 60:
		return ActionReview, false
	case riskScore >= 35:
		return ActionHold, false
	default:
		return ActionApprove, false
	}
}
