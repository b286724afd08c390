package formstate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var signupRules = []Rule{
	{Field: "username", Expr: `present(value)`, Message: "Username is required"},
	{Field: "username", Expr: `len(value) >= 3`, Message: "Username is too short"},
	{Field: "age", Expr: `value == nil || value >= args.min`, Message: "Too young", Args: map[string]any{"min": 18}},
	{Field: "confirm", Expr: `value == password`, Message: "Passwords do not match"},
}

func TestRuleSetValidateAtStopsAtFirstFailure(t *testing.T) {
	rules := MustRuleSet(signupRules)

	err := rules.ValidateAt(context.Background(), "username", Values{"username": ""})
	var issues *IssueError
	if !errors.As(err, &issues) {
		t.Fatalf("expected IssueError, got %v", err)
	}
	if len(issues.Issues) != 1 || issues.Issues[0].Message != "Username is required" {
		t.Fatalf("expected only the first failing rule, got %+v", issues.Issues)
	}

	if err := rules.ValidateAt(context.Background(), "username", Values{"username": "ada"}); err != nil {
		t.Fatalf("expected valid username, got %v", err)
	}
	if err := rules.ValidateAt(context.Background(), "unruled", Values{}); err != nil {
		t.Fatalf("expected fields without rules to pass, got %v", err)
	}
}

func TestRuleSetValidateIsExhaustive(t *testing.T) {
	rules := MustRuleSet(signupRules)

	err := rules.Validate(context.Background(), Values{
		"username": "ab",
		"age":      float64(12),
		"password": "secret",
		"confirm":  "secrte",
	})
	var issues *IssueError
	if !errors.As(err, &issues) {
		t.Fatalf("expected IssueError, got %v", err)
	}
	got := issues.toErrors()
	want := Errors{
		"username": "Username is too short",
		"age":      "Too young",
		"confirm":  "Passwords do not match",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for field, message := range want {
		if got[field] != message {
			t.Fatalf("expected %s=%q, got %q", field, message, got[field])
		}
	}
}

func TestRuleSetWithCELEvaluator(t *testing.T) {
	rules, err := NewRuleSet([]Rule{
		{Field: "email", Expr: `value != null && value.contains("@")`, Message: "Invalid email"},
		{Field: "age", Expr: `value >= 18.0`, Message: "Too young"},
		{Field: "starts", Expr: `timestamp(value) > now`, Message: "Must be in the future"},
	},
		WithRuleEvaluator(NewCELEvaluator(CELWithFields("email", "age", "starts"), CELWithProgramCache(NewMemoryProgramCache()))),
		WithRuleClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	valid := Values{"email": "a@b.c", "age": float64(30), "starts": "2024-02-01T00:00:00.000Z"}
	if err := rules.Validate(context.Background(), valid); err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}

	err = rules.Validate(context.Background(), Values{"email": "nope", "age": float64(16), "starts": "2023-12-01T00:00:00.000Z"})
	var issues *IssueError
	if !errors.As(err, &issues) || len(issues.Issues) != 3 {
		t.Fatalf("expected three issues, got %v", err)
	}
}

func TestNewRuleSetRejectsBrokenRules(t *testing.T) {
	if _, err := NewRuleSet([]Rule{{Field: "a", Expr: `value ==`}}); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := NewRuleSet([]Rule{{Expr: `true`}}); err == nil {
		t.Fatalf("expected error for rule without field")
	}
	if _, err := NewRuleSet([]Rule{{Field: "a", Expr: `"text"`}}); err == nil {
		t.Fatalf("expected error for non-boolean rule")
	}
	if _, err := NewRuleSet(nil, WithRuleEvaluator(nil)); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
}

func TestRuleSetEvaluationErrorIsCrash(t *testing.T) {
	rules := MustRuleSet([]Rule{{Field: "age", Expr: `value > 3`}})

	err := rules.ValidateAt(context.Background(), "age", Values{"age": "old"})
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "expr" || evalErr.Field != "age" {
		t.Fatalf("unexpected evaluation error metadata: %+v", evalErr)
	}

	adapter := newValidatorAdapter(AtPath(rules))
	message, err := adapter.validateField(context.Background(), "age", Values{"age": "old"})
	if message != InvalidValueMessage || !errors.Is(err, ErrValidatorCrashed) {
		t.Fatalf("expected crash downgrade, got %q %v", message, err)
	}
}

func TestRuleSetLogsEvaluations(t *testing.T) {
	var events []EvaluatorLogEvent
	rules := MustRuleSet(
		[]Rule{{Field: "name", Expr: `value != ""`, Message: "Required"}},
		WithRuleLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
			events = append(events, event)
		})),
	)

	_ = rules.ValidateAt(context.Background(), "name", Values{"name": ""})

	if len(events) != 1 {
		t.Fatalf("expected one log event, got %d", len(events))
	}
	if events[0].Engine != "expr" || events[0].Field != "name" || events[0].Passed || events[0].Err != nil {
		t.Fatalf("unexpected log event %+v", events[0])
	}
}

func TestRuleSetHonoursCancellation(t *testing.T) {
	rules := MustRuleSet(signupRules)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rules.Validate(ctx, Values{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestRuleSetFields(t *testing.T) {
	got := strings.Join(MustRuleSet(signupRules).Fields(), ",")
	if got != "username,age,confirm" {
		t.Fatalf("unexpected fields %q", got)
	}
}

func TestExprEvaluatorExposesRuleContext(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("double", func(args ...any) (any, error) {
		return args[0].(float64) * 2, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	evaluator := NewExprEvaluator(ExprWithFunctionRegistry(registry), ExprWithProgramCache(NewMemoryProgramCache()))

	got, err := evaluator.Evaluate(RuleContext{
		Snapshot: Values{"qty": float64(4)},
		Field:    "qty",
		Value:    float64(4),
	}, `double(qty) == 8 && field == "qty"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %v", got)
	}
}

type constantEvaluator struct{ result any }

func (e constantEvaluator) Evaluate(RuleContext, string) (any, error) { return e.result, nil }

func (e constantEvaluator) Compile(string, ...CompileOption) (CompiledRule, error) {
	return constantRule(e), nil
}

type constantRule constantEvaluator

func (r constantRule) Evaluate(RuleContext) (any, error) { return r.result, nil }

func TestRuleSetReportsEngineName(t *testing.T) {
	cases := []struct {
		evaluator Evaluator
		want      string
	}{
		{evaluator: NewExprEvaluator(), want: "expr"},
		{evaluator: NewCELEvaluator(), want: "cel"},
		{evaluator: constantEvaluator{result: "yes"}, want: "custom"},
	}
	for _, tc := range cases {
		rules, err := NewRuleSet([]Rule{{Field: "a", Expr: `value == "x"`}}, WithRuleEvaluator(tc.evaluator))
		if err != nil {
			t.Fatalf("%s: %v", tc.want, err)
		}
		if rules.engine != tc.want {
			t.Fatalf("expected engine %q, got %q", tc.want, rules.engine)
		}
	}

	rules := MustRuleSet([]Rule{{Field: "a", Expr: "anything"}}, WithRuleEvaluator(constantEvaluator{result: "yes"}))
	err := rules.ValidateAt(context.Background(), "a", Values{"a": "x"})
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "custom" {
		t.Fatalf("expected custom engine in evaluation error, got %v", err)
	}
}
