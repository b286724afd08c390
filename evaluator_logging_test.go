package formstate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSlogEvaluatorLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := SlogEvaluatorLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.LogEvaluation(EvaluatorLogEvent{Engine: "expr", Expr: "present(value)", Field: "username", Passed: true, Duration: time.Millisecond})
	logger.LogEvaluation(EvaluatorLogEvent{Engine: "cel", Expr: "value > 1", Field: "age", Err: errors.New("no such overload")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "level=DEBUG") || !strings.Contains(lines[0], "field=username") || !strings.Contains(lines[0], "passed=true") {
		t.Fatalf("unexpected passing line %q", lines[0])
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], "engine=cel") || !strings.Contains(lines[1], `error="no such overload"`) {
		t.Fatalf("unexpected failing line %q", lines[1])
	}
}

func TestSlogEvaluatorLoggerWiredIntoRuleSet(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	rules, err := NewRuleSet([]Rule{{Field: "age", Expr: `value >= 18`}}, WithRuleLogger(SlogEvaluatorLogger(logger)))
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	if err := rules.ValidateAt(context.Background(), "age", Values{"age": float64(36)}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected passing rule below warn level, got %q", buf.String())
	}
	if err := rules.ValidateAt(context.Background(), "age", Values{"age": "old"}); err == nil {
		t.Fatalf("expected evaluation error for text age")
	}
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "field=age") {
		t.Fatalf("expected warn line for failed evaluation, got %q", buf.String())
	}
}

func TestSlogEvaluatorLoggerNilIsNoop(t *testing.T) {
	SlogEvaluatorLogger(nil).LogEvaluation(EvaluatorLogEvent{Engine: "expr"})
}
