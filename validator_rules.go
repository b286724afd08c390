package formstate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("formstate: evaluator not configured")

// Rule is a boolean expression guarding one field. The rule fails when Expr
// evaluates to false.
type Rule struct {
	Field   string
	Expr    string
	Message string
	Args    map[string]any
}

// RuleSetOption configures a RuleSet.
type RuleSetOption func(*RuleSet)

// WithRuleEvaluator selects the engine rules are compiled with. Defaults to
// expr.
func WithRuleEvaluator(evaluator Evaluator) RuleSetOption {
	return func(rs *RuleSet) {
		rs.evaluator = evaluator
		rs.evaluatorSet = true
	}
}

// WithRuleLogger records every rule evaluation.
func WithRuleLogger(logger EvaluatorLogger) RuleSetOption {
	return func(rs *RuleSet) {
		if logger == nil {
			rs.logger = noopEvaluatorLogger{}
			return
		}
		rs.logger = logger
	}
}

// WithRuleClock pins the now binding, mostly for tests.
func WithRuleClock(clock func() time.Time) RuleSetOption {
	return func(rs *RuleSet) {
		rs.clock = clock
	}
}

type compiledRule struct {
	Rule
	program CompiledRule
}

// RuleSet is an AtPathValidator backed by expression rules. Rules for a field
// run in declaration order.
type RuleSet struct {
	evaluator    Evaluator
	evaluatorSet bool
	engine       string
	logger       EvaluatorLogger
	clock        func() time.Time
	rules        []compiledRule
	byField      map[string][]int
}

// NewRuleSet compiles rules up front so broken expressions fail at
// construction rather than while a user types.
func NewRuleSet(rules []Rule, opts ...RuleSetOption) (*RuleSet, error) {
	rs := &RuleSet{
		logger:  noopEvaluatorLogger{},
		clock:   time.Now,
		byField: map[string][]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rs)
		}
	}
	if !rs.evaluatorSet {
		rs.evaluator = NewExprEvaluator(ExprWithFunctionRegistry(NewFormFunctionRegistry()))
	}
	if rs.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	rs.engine = evaluatorEngineName(rs.evaluator)

	for _, rule := range rules {
		if rule.Field == "" {
			return nil, fmt.Errorf("formstate: rule %q has no field", rule.Expr)
		}
		program, err := rs.evaluator.Compile(rule.Expr, CompileAsBool())
		if err != nil {
			return nil, fmt.Errorf("formstate: compile rule for field %q: %w", rule.Field, err)
		}
		if rule.Message == "" {
			rule.Message = InvalidValueMessage
		}
		rs.byField[rule.Field] = append(rs.byField[rule.Field], len(rs.rules))
		rs.rules = append(rs.rules, compiledRule{Rule: rule, program: program})
	}
	return rs, nil
}

// MustRuleSet is NewRuleSet for static rule tables.
func MustRuleSet(rules []Rule, opts ...RuleSetOption) *RuleSet {
	rs, err := NewRuleSet(rules, opts...)
	if err != nil {
		panic(err)
	}
	return rs
}

// Fields returns the fields that carry at least one rule, in declaration
// order.
func (rs *RuleSet) Fields() []string {
	out := make([]string, 0, len(rs.byField))
	seen := map[string]bool{}
	for _, rule := range rs.rules {
		if !seen[rule.Field] {
			seen[rule.Field] = true
			out = append(out, rule.Field)
		}
	}
	return out
}

// ValidateAt runs the rules of field and reports the first failure.
func (rs *RuleSet) ValidateAt(ctx context.Context, field string, values Values) error {
	now := rs.clock()
	for _, index := range rs.byField[field] {
		if err := ctx.Err(); err != nil {
			return err
		}
		passed, err := rs.check(rs.rules[index], values, now)
		if err != nil {
			return err
		}
		if !passed {
			return NewIssueError(FieldIssue(field, rs.rules[index].Message))
		}
	}
	return nil
}

// Validate runs every rule and reports every failure in declaration order.
func (rs *RuleSet) Validate(ctx context.Context, values Values) error {
	now := rs.clock()
	var issues []Issue
	for _, rule := range rs.rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		passed, err := rs.check(rule, values, now)
		if err != nil {
			return err
		}
		if !passed {
			issues = append(issues, FieldIssue(rule.Field, rule.Message))
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return NewIssueError(issues...)
}

func (rs *RuleSet) check(rule compiledRule, values Values, now time.Time) (bool, error) {
	ctx := RuleContext{
		Snapshot: values,
		Field:    rule.Field,
		Value:    values[rule.Field],
		Now:      &now,
		Args:     rule.Args,
	}
	start := time.Now()
	result, err := rule.program.Evaluate(ctx)
	passed := false
	if err == nil {
		var ok bool
		passed, ok = result.(bool)
		if !ok {
			err = runError(rs.engine, rule.Expr, rule.Field, fmt.Errorf("rule yielded %T, want bool", result))
		}
	} else {
		err = runError(rs.engine, rule.Expr, rule.Field, err)
	}
	rs.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   rs.engine,
		Expr:     rule.Expr,
		Field:    rule.Field,
		Passed:   passed,
		Duration: time.Since(start),
		Err:      err,
	})
	return passed, err
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ engineName() string }); ok {
		return named.engineName()
	}
	return "custom"
}
