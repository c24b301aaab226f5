package rules

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// packRule mirrors Rule for YAML with enabled defaulting to true when
// omitted.
type packRule struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Action      Action     `yaml:"action"`
	Priority    int        `yaml:"priority"`
	Enabled     *bool      `yaml:"enabled"`
	Expression  string     `yaml:"expression"`
	CreatedAt   *time.Time `yaml:"created_at"`
}

type pack struct {
	Rules []packRule `yaml:"rules"`
}

// LoadPack reads a YAML rule pack and compile-checks every expression.
// A malformed pack fails loading whole; rules are config, and half a
// config is worse than none.
func LoadPack(path string, engine *Engine) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read pack: %w", err)
	}
	return ParsePack(data, engine)
}

// ParsePack parses and validates rule-pack bytes.
func ParsePack(data []byte, engine *Engine) ([]Rule, error) {
	var p pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("rules: parse pack: %w", err)
	}

	seen := map[string]bool{}
	out := make([]Rule, 0, len(p.Rules))
	for i, pr := range p.Rules {
		if pr.ID == "" {
			return nil, fmt.Errorf("rules: rule %d has no id", i)
		}
		if seen[pr.ID] {
			return nil, fmt.Errorf("rules: duplicate rule id %q", pr.ID)
		}
		seen[pr.ID] = true
		if pr.Name == "" {
			return nil, fmt.Errorf("rules: rule %q has no name", pr.ID)
		}
		if !ValidRuleAction(pr.Action) {
			return nil, fmt.Errorf("rules: rule %q has action %q, want approve, hold, or block", pr.ID, pr.Action)
		}
		if pr.Expression == "" {
			return nil, fmt.Errorf("rules: rule %q has no expression", pr.ID)
		}
		if err := engine.Compile(pr.Expression); err != nil {
			return nil, fmt.Errorf("rules: rule %q: %w", pr.ID, err)
		}

		r := Rule{
			ID:          pr.ID,
			Name:        pr.Name,
			Description: pr.Description,
			Action:      pr.Action,
			Priority:    pr.Priority,
			Enabled:     true,
			Expression:  pr.Expression,
		}
		if pr.Enabled != nil {
			r.Enabled = *pr.Enabled
		}
		if pr.CreatedAt != nil {
			r.CreatedAt = *pr.CreatedAt
		}
		out = append(out, r)
	}
	return out, nil
}
