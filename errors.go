package formstate

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// InvalidValueMessage is surfaced when a validator fails without reporting
	// a structured issue for the field.
	InvalidValueMessage = "Invalid value"
	// InvalidNumberMessage is surfaced when a number input carries
	// non-numeric text.
	InvalidNumberMessage = "Invalid number"
)

var (
	ErrUnknownField     = errors.New("formstate: unknown field")
	ErrSubmitInProgress = errors.New("formstate: submit already in progress")
	ErrInvalidForm      = errors.New("formstate: form has validation errors")
	ErrInvalidInput     = errors.New("formstate: invalid input")
	ErrValidatorCrashed = errors.New("formstate: validator failed")
)

// Issue is one violated rule reported by a schema-style validator.
type Issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// FieldIssue builds an issue for a top-level field.
func FieldIssue(field, message string) Issue {
	return Issue{Path: []string{field}, Message: message}
}

// Field returns the top-level field the issue belongs to, skipping CUE style
// definition segments.
func (i Issue) Field() string {
	for _, segment := range i.Path {
		if segment == "" || strings.HasPrefix(segment, "#") {
			continue
		}
		return segment
	}
	return ""
}

func (i Issue) includes(field string) bool {
	for _, segment := range i.Path {
		if segment == field {
			return true
		}
	}
	return false
}

// IssueError is the structured failure validators report. Any other error
// returned by a validator is treated as a crash.
type IssueError struct {
	Issues []Issue
}

// NewIssueError wraps issues into an error.
func NewIssueError(issues ...Issue) *IssueError {
	return &IssueError{Issues: append([]Issue(nil), issues...)}
}

func (e *IssueError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "formstate: validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		path := strings.Join(issue.Path, ".")
		if path == "" {
			parts = append(parts, issue.Message)
			continue
		}
		parts = append(parts, path+": "+issue.Message)
	}
	return "formstate: validation failed: " + strings.Join(parts, "; ")
}

// messageFor returns the message of the first issue for field, falling back
// to the first issue when none matches.
func (e *IssueError) messageFor(field string) string {
	if e == nil || len(e.Issues) == 0 {
		return InvalidValueMessage
	}
	for _, issue := range e.Issues {
		if issue.includes(field) && issue.Message != "" {
			return issue.Message
		}
	}
	if e.Issues[0].Message == "" {
		return InvalidValueMessage
	}
	return e.Issues[0].Message
}

// toErrors reduces issues into an error map. The first issue reported for a
// field wins.
func (e *IssueError) toErrors() Errors {
	out := Errors{}
	if e == nil {
		return out
	}
	for _, issue := range e.Issues {
		field := issue.Field()
		if field == "" || issue.Message == "" {
			continue
		}
		if _, exists := out[field]; exists {
			continue
		}
		out[field] = issue.Message
	}
	return out
}

// NormalizationError reports raw input that cannot be converted for its kind.
type NormalizationError struct {
	Field string
	Kind  Kind
	Raw   string
	Err   error
}

func (e *NormalizationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("formstate: normalize %s field %q value %q: %v", e.Kind, e.Field, e.Raw, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports ErrInvalidInput for every normalization failure.
func (e *NormalizationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Message is the text stored in the field's error slot.
func (e *NormalizationError) Message() string {
	if e != nil && e.Kind == KindNumber {
		return InvalidNumberMessage
	}
	return InvalidValueMessage
}

// ValidatorError reports a validator that failed for reasons unrelated to
// validation semantics.
type ValidatorError struct {
	Field string
	Err   error
}

func (e *ValidatorError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field == "" {
		return fmt.Sprintf("formstate: validator failed: %v", e.Err)
	}
	return fmt.Sprintf("formstate: validator failed for field %q: %v", e.Field, e.Err)
}

func (e *ValidatorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports ErrValidatorCrashed for every validator failure.
func (e *ValidatorError) Is(target error) bool {
	return target == ErrValidatorCrashed
}

func unknownField(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownField, name)
}
