package formstate

import (
	"errors"
	"testing"
)

func TestEvaluationErrorMessages(t *testing.T) {
	base := errors.New("boom")
	cases := []struct {
		name  string
		err   error
		stage EvaluationStage
		want  string
	}{
		{
			name:  "compile",
			err:   compileError("expr", "value ==", base),
			stage: StageCompile,
			want:  `formstate: expr rule "value ==" does not compile: boom`,
		},
		{
			name:  "run",
			err:   runError("cel", "value > 1", "age", base),
			stage: StageRun,
			want:  `formstate: cel rule "value > 1" on age: boom`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var evalErr *EvaluationError
			if !errors.As(tc.err, &evalErr) {
				t.Fatalf("expected EvaluationError, got %T", tc.err)
			}
			if evalErr.Stage != tc.stage || !errors.Is(tc.err, base) {
				t.Fatalf("unexpected error %+v", evalErr)
			}
			if tc.err.Error() != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, tc.err.Error())
			}
		})
	}
}

func TestRunErrorFillsMissingContext(t *testing.T) {
	inner := &EvaluationError{Engine: "js", Err: errors.New("ReferenceError")}
	err := runError("custom", "present(value)", "username", inner)

	if err != inner {
		t.Fatalf("expected the inner error to be reused")
	}
	if inner.Engine != "js" || inner.Expr != "present(value)" || inner.Field != "username" || inner.Stage != StageRun {
		t.Fatalf("unexpected context %+v", inner)
	}
}

func TestEngineErrorIsNotARuleFailure(t *testing.T) {
	err := engineError("cel", errors.New("bad env"))
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		t.Fatalf("expected plain engine error, got %v", evalErr)
	}
	if err.Error() != "formstate: cel engine: bad env" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if compileError("expr", "x", nil) != nil || runError("expr", "x", "a", nil) != nil || engineError("expr", nil) != nil {
		t.Fatalf("expected nil errors to stay nil")
	}
}
