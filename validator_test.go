package formstate

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type stubAtPath struct {
	at    func(field string, values Values) error
	whole func(values Values) error
}

func (s stubAtPath) ValidateAt(_ context.Context, field string, values Values) error {
	return s.at(field, values)
}

func (s stubAtPath) Validate(_ context.Context, values Values) error {
	return s.whole(values)
}

type stubWhole func(values Values) error

func (s stubWhole) Validate(_ context.Context, values Values) error {
	return s(values)
}

type stubFast struct {
	stubWhole
	fieldCalls *int
}

func (s stubFast) ValidateField(_ context.Context, field string, values Values) error {
	*s.fieldCalls++
	if values[field] == "" {
		return NewIssueError(FieldIssue(field, field+" is required"))
	}
	return nil
}

func requiredIssues(values Values, fields ...string) error {
	var issues []Issue
	for _, field := range fields {
		if values[field] == "" || values[field] == nil {
			issues = append(issues, FieldIssue(field, field+" is required"))
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return NewIssueError(issues...)
}

func TestValidatorAdapterValidateField(t *testing.T) {
	atPath := AtPath(stubAtPath{
		at: func(field string, values Values) error {
			return requiredIssues(values, field)
		},
		whole: func(values Values) error { return requiredIssues(values, "email", "name") },
	})
	whole := WholeObject(stubWhole(func(values Values) error {
		return requiredIssues(values, "email", "name")
	}))
	fn := Func(func(_ context.Context, values Values) (Errors, error) {
		out := Errors{}
		if values["email"] == "" {
			out["email"] = "email is required"
		}
		if values["name"] == "" {
			out["name"] = "name is required"
		}
		return out, nil
	})

	cases := []struct {
		name      string
		validator Validator
		field     string
		values    Values
		want      string
	}{
		{name: "at path failure", validator: atPath, field: "email", values: Values{"email": ""}, want: "email is required"},
		{name: "at path success", validator: atPath, field: "email", values: Values{"email": "a@b.c"}, want: ""},
		{name: "whole object matching issue", validator: whole, field: "name", values: Values{"email": "", "name": ""}, want: "name is required"},
		{name: "whole object valid", validator: whole, field: "name", values: Values{"email": "x", "name": "x"}, want: ""},
		{name: "whole object other field failing", validator: whole, field: "name", values: Values{"email": "", "name": "ada"}, want: InvalidValueMessage},
		{name: "func failure", validator: fn, field: "name", values: Values{"email": "x", "name": ""}, want: "name is required"},
		{name: "func other field failing", validator: fn, field: "name", values: Values{"email": "", "name": "ada"}, want: ""},
		{name: "no validator", validator: Validator{}, field: "name", values: Values{"name": ""}, want: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			adapter := newValidatorAdapter(tc.validator)
			got, err := adapter.validateField(context.Background(), tc.field, tc.values)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestValidatorAdapterUsesFieldFastPath(t *testing.T) {
	calls := 0
	adapter := newValidatorAdapter(WholeObject(stubFast{
		stubWhole: func(Values) error {
			t.Fatalf("whole-object validation should not run for a single field")
			return nil
		},
		fieldCalls: &calls,
	}))

	got, err := adapter.validateField(context.Background(), "name", Values{"email": "", "name": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "name is required" || calls != 1 {
		t.Fatalf("expected fast path message, got %q after %d calls", got, calls)
	}
}

func TestValidatorAdapterValidateFormReducesIssues(t *testing.T) {
	adapter := newValidatorAdapter(WholeObject(stubWhole(func(Values) error {
		return NewIssueError(
			Issue{Path: []string{"#Signup", "email"}, Message: "first"},
			Issue{Path: []string{"email"}, Message: "second"},
			Issue{Path: []string{"address", "zip"}, Message: "zip invalid"},
			Issue{Path: nil, Message: "form level"},
			Issue{Path: []string{"name"}, Message: ""},
		)
	})))

	got, err := adapter.validateForm(context.Background(), Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Errors{"email": "first", "address": "zip invalid"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidatorAdapterFuncDropsEmptyMessages(t *testing.T) {
	adapter := newValidatorAdapter(Func(func(context.Context, Values) (Errors, error) {
		return Errors{"a": "", "b": "bad"}, nil
	}))
	got, err := adapter.validateForm(context.Background(), Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, Errors{"b": "bad"}) {
		t.Fatalf("expected empty messages dropped, got %v", got)
	}
}

func TestValidatorAdapterCrashes(t *testing.T) {
	boom := errors.New("backend unavailable")
	shapes := map[string]Validator{
		"at path error": AtPath(stubAtPath{
			at:    func(string, Values) error { return boom },
			whole: func(Values) error { return boom },
		}),
		"whole object panic": WholeObject(stubWhole(func(Values) error { panic("schema exploded") })),
		"func error":         Func(func(context.Context, Values) (Errors, error) { return nil, boom }),
		"func panic":         Func(func(context.Context, Values) (Errors, error) { panic("nil map") }),
	}

	for name, validator := range shapes {
		validator := validator
		t.Run(name, func(t *testing.T) {
			adapter := newValidatorAdapter(validator)

			message, err := adapter.validateField(context.Background(), "email", Values{"email": "x"})
			if message != InvalidValueMessage {
				t.Fatalf("expected %q, got %q", InvalidValueMessage, message)
			}
			var validatorErr *ValidatorError
			if !errors.As(err, &validatorErr) || validatorErr.Field != "email" {
				t.Fatalf("expected ValidatorError for email, got %v", err)
			}

			errs, err := adapter.validateForm(context.Background(), Values{"email": "x"})
			if len(errs) != 0 {
				t.Fatalf("expected empty errors on crash, got %v", errs)
			}
			if !errors.Is(err, ErrValidatorCrashed) {
				t.Fatalf("expected ErrValidatorCrashed, got %v", err)
			}
		})
	}
}

func TestValidatorAdapterReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	adapter := newValidatorAdapter(Func(func(ctx context.Context, _ Values) (Errors, error) {
		return nil, ctx.Err()
	}))

	message, err := adapter.validateField(ctx, "email", Values{})
	if message != "" || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation without message, got %q %v", message, err)
	}
	if _, err := adapter.validateForm(ctx, Values{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestIssueErrorMessageFallsBack(t *testing.T) {
	if got := NewIssueError().messageFor("x"); got != InvalidValueMessage {
		t.Fatalf("expected fallback for empty issues, got %q", got)
	}
	if got := NewIssueError(FieldIssue("other", "other bad")).messageFor("x"); got != "other bad" {
		t.Fatalf("expected first issue for scoped validator, got %q", got)
	}
}
