package formstate

import (
	"errors"
	"fmt"
)

// EvaluationStage tells whether a rule failed while compiling or running.
type EvaluationStage string

const (
	StageCompile EvaluationStage = "compile"
	StageRun     EvaluationStage = "run"
)

// EvaluationError is a rule expression failure. A rule that fails this way
// neither passes nor fails validation, so the adapter treats it as a crash.
type EvaluationError struct {
	Engine string
	Stage  EvaluationStage
	Expr   string
	// Field is the field the rule guards; empty while compiling.
	Field string
	Err   error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Stage == StageCompile {
		return fmt.Sprintf("formstate: %s rule %q does not compile: %v", e.Engine, e.Expr, e.Err)
	}
	return fmt.Sprintf("formstate: %s rule %q on %s: %v", e.Engine, e.Expr, e.Field, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func compileError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}
	return &EvaluationError{Engine: engine, Stage: StageCompile, Expr: expr, Err: err}
}

// runError reports a failed evaluation for field. An EvaluationError raised
// deeper keeps its own engine and stage and only gains the missing context.
func runError(engine, expr, field string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Engine == "" {
			existing.Engine = engine
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		if existing.Field == "" {
			existing.Field = field
		}
		if existing.Stage == "" {
			existing.Stage = StageRun
		}
		return existing
	}
	return &EvaluationError{Engine: engine, Stage: StageRun, Expr: expr, Field: field, Err: err}
}

// engineError reports a misconfigured engine rather than a bad rule.
func engineError(engine string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("formstate: %s engine: %w", engine, err)
}
