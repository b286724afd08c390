package formstate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultTagMessages maps validator tags to the message surfaced for them.
// "{param}" is replaced with the tag parameter.
var DefaultTagMessages = map[string]string{
	"required": "Required",
	"email":    "Invalid email address",
	"url":      "Invalid URL",
	"numeric":  "Must be numeric",
	"number":   "Must be a number",
	"min":      "Must be at least {param}",
	"max":      "Must be at most {param}",
	"gte":      "Must be at least {param}",
	"lte":      "Must be at most {param}",
	"gt":       "Must be greater than {param}",
	"lt":       "Must be less than {param}",
	"len":      "Must be exactly {param}",
	"oneof":    "Must be one of: {param}",
	"alphanum": "Must contain only letters and digits",
	"boolean":  "Must be true or false",
	"datetime": "Invalid date",
}

// TagValidatorOption configures a TagValidator.
type TagValidatorOption func(*TagValidator)

// WithTagMessage overrides the message for tag.
func WithTagMessage(tag, message string) TagValidatorOption {
	return func(v *TagValidator) {
		v.tagMessages[tag] = message
	}
}

// WithFieldMessage fixes the message reported for field regardless of which
// tag failed.
func WithFieldMessage(field, message string) TagValidatorOption {
	return func(v *TagValidator) {
		v.fieldMessages[field] = message
	}
}

// WithValidate supplies a preconfigured validator instance.
func WithValidate(validate *validator.Validate) TagValidatorOption {
	return func(v *TagValidator) {
		if validate != nil {
			v.validate = validate
		}
	}
}

// TagValidator is an AtPathValidator applying go-playground validator tags
// per field, e.g. {"email": "required,email", "age": "gte=18"}.
type TagValidator struct {
	validate      *validator.Validate
	rules         map[string]string
	fields        []string
	tagMessages   map[string]string
	fieldMessages map[string]string
}

// NewTagValidator builds a validator over rules keyed by field name.
func NewTagValidator(rules map[string]string, opts ...TagValidatorOption) *TagValidator {
	v := &TagValidator{
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		rules:         make(map[string]string, len(rules)),
		tagMessages:   make(map[string]string, len(DefaultTagMessages)),
		fieldMessages: map[string]string{},
	}
	for tag, message := range DefaultTagMessages {
		v.tagMessages[tag] = message
	}
	for field, tag := range rules {
		v.rules[field] = tag
		v.fields = append(v.fields, field)
	}
	sort.Strings(v.fields)
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// RegisterValidation adds a custom tag to the underlying validator.
func (v *TagValidator) RegisterValidation(tag string, fn validator.Func, message string) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("formstate: register validation %q: %w", tag, err)
	}
	if message != "" {
		v.tagMessages[tag] = message
	}
	return nil
}

// ValidateAt checks the tags of field against its current value.
func (v *TagValidator) ValidateAt(ctx context.Context, field string, values Values) error {
	issue, err := v.check(ctx, field, values[field])
	if err != nil || issue == nil {
		return err
	}
	return NewIssueError(*issue)
}

// Validate checks every field with tags, in field name order.
func (v *TagValidator) Validate(ctx context.Context, values Values) error {
	var issues []Issue
	for _, field := range v.fields {
		issue, err := v.check(ctx, field, values[field])
		if err != nil {
			return err
		}
		if issue != nil {
			issues = append(issues, *issue)
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return NewIssueError(issues...)
}

func (v *TagValidator) check(ctx context.Context, field string, value any) (*Issue, error) {
	tag, ok := v.rules[field]
	if !ok || tag == "" {
		return nil, nil
	}
	err := v.validate.VarCtx(ctx, tagValue(value), tag)
	if err == nil {
		return nil, nil
	}
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return nil, err
	}
	issue := FieldIssue(field, v.message(field, failures[0]))
	return &issue, nil
}

func (v *TagValidator) message(field string, failure validator.FieldError) string {
	if message, ok := v.fieldMessages[field]; ok {
		return message
	}
	message, ok := v.tagMessages[failure.Tag()]
	if !ok {
		return InvalidValueMessage
	}
	return strings.ReplaceAll(message, "{param}", failure.Param())
}

// tagValue unwraps single files to their name so string tags apply to them.
func tagValue(value any) any {
	switch v := value.(type) {
	case File:
		return v.Name
	case []File:
		names := make([]string, len(v))
		for i, file := range v {
			names[i] = file.Name
		}
		return names
	default:
		return value
	}
}
