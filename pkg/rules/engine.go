package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// RuleTimeout bounds one expression evaluation. Expressions that exceed it
// are skipped with a warning; a slow rule must not slow the order path.
const RuleTimeout = 50 * time.Millisecond

// costLimit caps the computational budget per evaluation.
const costLimit = 10000

// Engine compiles and evaluates rule expressions against the fixed
// evaluation context. Compiled programs are cached per expression.
type Engine struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
	logger   *slog.Logger
}

// NewEngine builds the CEL environment with one declared variable per
// context field, so misspelled attributes fail at compile time instead of
// evaluating to null.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("email", cel.StringType),
		cel.Variable("phone", cel.StringType),
		cel.Variable("address", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("name", cel.StringType),
		cel.Variable("ip", cel.StringType),
		cel.Variable("device", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("risk_score", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("transaction_amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("session_id", cel.StringType),
		cel.Variable("customer_dedupe_matches", cel.ListType(cel.DynType)),
		cel.Variable("address_dedupe_matches", cel.ListType(cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: create environment: %w", err)
	}
	return &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
		logger:   logger,
	}, nil
}

// Compile checks an expression against the environment without caching.
// Used when loading rule packs so bad expressions are rejected up front.
func (e *Engine) Compile(expr string) error {
	_, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("rules: compile: %w", issues.Err())
	}
	return nil
}

// program returns the cached compiled program for expr, compiling it under
// the write lock on first use.
func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.programs[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.programs[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rules: compile: %w", issues.Err())
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: program: %w", err)
	}
	e.programs[expr] = prg
	return prg, nil
}

// evaluateRule runs one expression with the per-rule deadline. Non-bool
// results are an error; rules must state a predicate.
func (e *Engine) evaluateRule(ctx context.Context, expr string, input map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, RuleTimeout)
	defer cancel()

	out, _, err := prg.ContextEval(ctx, input)
	if err != nil {
		return false, fmt.Errorf("rules: eval: %w", err)
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rules: expression result is %T, want bool", out.Value())
	}
	return fired, nil
}

// Evaluate runs every enabled rule in priority order and aggregates the
// verdict. Rules that error or time out are skipped and reported; the
// remaining signals still decide.
func (e *Engine) Evaluate(ctx context.Context, rs []Rule, ec *EvaluationContext) *Outcome {
	ordered := make([]Rule, len(rs))
	copy(ordered, rs)
	SortRules(ordered)

	input := ec.activation()
	out := &Outcome{Fired: []FiredRule{}}

	for _, r := range ordered {
		if !r.Enabled {
			continue
		}
		fired, err := e.evaluateRule(ctx, r.Expression, input)
		if err != nil {
			e.logger.Warn("rule skipped", "rule_id", r.ID, "rule_name", r.Name, "error", err)
			out.Skipped = append(out.Skipped, r.ID)
			continue
		}
		if fired {
			out.Fired = append(out.Fired, FiredRule{ID: r.ID, Name: r.Name, Action: r.Action})
		}
	}

	out.Action, out.Overridden = Aggregate(out.Fired, ec.RiskScore, ec.RiskLevel)
	return out
}
