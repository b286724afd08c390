package formstate

import (
	"context"
	"errors"
	"fmt"
)

// AtPathValidator validates a single field or the whole value bag. Failures
// are reported as *IssueError.
type AtPathValidator interface {
	ValidateAt(ctx context.Context, field string, values Values) error
	Validate(ctx context.Context, values Values) error
}

// WholeObjectValidator validates the whole value bag only.
type WholeObjectValidator interface {
	Validate(ctx context.Context, values Values) error
}

// FieldValidator is the optional single-field fast path a whole-object
// validator may expose.
type FieldValidator interface {
	ValidateField(ctx context.Context, field string, values Values) error
}

// ValidateFunc maps a value bag to field errors.
type ValidateFunc func(ctx context.Context, values Values) (Errors, error)

type validatorKind int

const (
	validatorNone validatorKind = iota
	validatorAtPath
	validatorWholeObject
	validatorFunc
)

// Validator holds exactly one of the supported validator shapes. The zero
// value disables validation.
type Validator struct {
	kind   validatorKind
	atPath AtPathValidator
	whole  WholeObjectValidator
	fn     ValidateFunc
}

// AtPath wraps a validator that supports single-field validation.
func AtPath(v AtPathValidator) Validator {
	if v == nil {
		return Validator{}
	}
	return Validator{kind: validatorAtPath, atPath: v}
}

// WholeObject wraps a validator that only validates whole value bags.
func WholeObject(v WholeObjectValidator) Validator {
	if v == nil {
		return Validator{}
	}
	return Validator{kind: validatorWholeObject, whole: v}
}

// Func wraps a plain validation function.
func Func(fn ValidateFunc) Validator {
	if fn == nil {
		return Validator{}
	}
	return Validator{kind: validatorFunc, fn: fn}
}

// Configured reports whether a validator shape is set.
func (v Validator) Configured() bool {
	return v.kind != validatorNone
}

func (v Validator) engine() string {
	switch v.kind {
	case validatorAtPath:
		return "at_path"
	case validatorWholeObject:
		return "whole_object"
	case validatorFunc:
		return "func"
	default:
		return "none"
	}
}

// validatorAdapter presents one interface over every validator shape. The
// per-shape functions are bound once at construction.
type validatorAdapter struct {
	engine        string
	validateField func(ctx context.Context, field string, values Values) (string, error)
	validateForm  func(ctx context.Context, values Values) (Errors, error)
}

func newValidatorAdapter(v Validator) validatorAdapter {
	adapter := validatorAdapter{engine: v.engine()}
	switch v.kind {
	case validatorAtPath:
		adapter.validateField = atPathField(v.atPath)
		adapter.validateForm = issuesForm(v.atPath.Validate)
	case validatorWholeObject:
		if fast, ok := v.whole.(FieldValidator); ok {
			adapter.validateField = fastPathField(fast)
		} else {
			adapter.validateField = wholeObjectField(v.whole)
		}
		adapter.validateForm = issuesForm(v.whole.Validate)
	case validatorFunc:
		adapter.validateField = funcField(v.fn)
		adapter.validateForm = funcForm(v.fn)
	default:
		adapter.validateField = func(context.Context, string, Values) (string, error) { return "", nil }
		adapter.validateForm = func(context.Context, Values) (Errors, error) { return Errors{}, nil }
	}
	return adapter
}

func atPathField(v AtPathValidator) func(context.Context, string, Values) (string, error) {
	return func(ctx context.Context, field string, values Values) (string, error) {
		return fieldResult(ctx, field, guard(func() error { return v.ValidateAt(ctx, field, values) }), true)
	}
}

func fastPathField(v FieldValidator) func(context.Context, string, Values) (string, error) {
	return func(ctx context.Context, field string, values Values) (string, error) {
		return fieldResult(ctx, field, guard(func() error { return v.ValidateField(ctx, field, values) }), true)
	}
}

func wholeObjectField(v WholeObjectValidator) func(context.Context, string, Values) (string, error) {
	return func(ctx context.Context, field string, values Values) (string, error) {
		return fieldResult(ctx, field, guard(func() error { return v.Validate(ctx, values) }), false)
	}
}

func funcField(fn ValidateFunc) func(context.Context, string, Values) (string, error) {
	return func(ctx context.Context, field string, values Values) (string, error) {
		result, err := callFunc(ctx, fn, values)
		if err != nil {
			return crashResult(ctx, field, err)
		}
		return result[field], nil
	}
}

// fieldResult turns a validator error into the message for field. scoped
// reports whether the validator only looked at field, in which case its first
// issue belongs to it even when the path names something else. A failed
// whole-bag validation with no issue for field yields InvalidValueMessage.
func fieldResult(ctx context.Context, field string, err error, scoped bool) (string, error) {
	if err == nil {
		return "", nil
	}
	var issues *IssueError
	if errors.As(err, &issues) {
		if scoped {
			return issues.messageFor(field), nil
		}
		for _, issue := range issues.Issues {
			if issue.includes(field) && issue.Message != "" {
				return issue.Message, nil
			}
		}
		return InvalidValueMessage, nil
	}
	return crashResult(ctx, field, err)
}

func crashResult(ctx context.Context, field string, err error) (string, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return InvalidValueMessage, &ValidatorError{Field: field, Err: err}
}

func issuesForm(validate func(context.Context, Values) error) func(context.Context, Values) (Errors, error) {
	return func(ctx context.Context, values Values) (Errors, error) {
		err := guard(func() error { return validate(ctx, values) })
		if err == nil {
			return Errors{}, nil
		}
		var issues *IssueError
		if errors.As(err, &issues) {
			return issues.toErrors(), nil
		}
		return formCrash(ctx, err)
	}
}

func funcForm(fn ValidateFunc) func(context.Context, Values) (Errors, error) {
	return func(ctx context.Context, values Values) (Errors, error) {
		result, err := callFunc(ctx, fn, values)
		if err != nil {
			return formCrash(ctx, err)
		}
		out := make(Errors, len(result))
		for field, message := range result {
			if message != "" {
				out[field] = message
			}
		}
		return out, nil
	}
}

func formCrash(ctx context.Context, err error) (Errors, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Errors{}, ctxErr
	}
	return Errors{}, &ValidatorError{Err: err}
}

func callFunc(ctx context.Context, fn ValidateFunc, values Values) (Errors, error) {
	var result Errors
	err := guard(func() error {
		var callErr error
		result, callErr = fn(ctx, values)
		return callErr
	})
	return result, err
}

// guard converts a validator panic into an error so nothing escapes the
// adapter.
func guard(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("formstate: validator panic: %v", r)
		}
	}()
	return call()
}
