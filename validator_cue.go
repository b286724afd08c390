package formstate

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// CUESchemaOption configures a CUESchema.
type CUESchemaOption func(*cueSchemaConfig)

type cueSchemaConfig struct {
	definition string
	messages   map[string]string
}

// WithCUEDefinition validates against the named definition (e.g. "#Signup")
// instead of the file's top-level value.
func WithCUEDefinition(name string) CUESchemaOption {
	return func(cfg *cueSchemaConfig) {
		cfg.definition = name
	}
}

// WithCUEMessage replaces the CUE diagnostic reported for field.
func WithCUEMessage(field, message string) CUESchemaOption {
	return func(cfg *cueSchemaConfig) {
		cfg.messages[field] = message
	}
}

// CUESchema is a WholeObjectValidator backed by a CUE schema. It also
// implements FieldValidator so single-field checks only report the field's own
// conflicts. Nil values are left out of the unified document, so a required
// field that is still null reports as incomplete.
type CUESchema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	schema   cue.Value
	messages map[string]string
}

// NewCUESchema compiles source. Numbers reach CUE as float64, so numeric
// constraints should use number rather than int.
func NewCUESchema(source string, opts ...CUESchemaOption) (*CUESchema, error) {
	cfg := cueSchemaConfig{messages: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cuectx := cuecontext.New()
	schema := cuectx.CompileString(source)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("formstate: compile cue schema: %w", err)
	}
	if cfg.definition != "" {
		schema = schema.LookupPath(cue.ParsePath(cfg.definition))
		if !schema.Exists() {
			return nil, fmt.Errorf("formstate: cue definition %q not found", cfg.definition)
		}
		if err := schema.Err(); err != nil {
			return nil, fmt.Errorf("formstate: cue definition %q: %w", cfg.definition, err)
		}
	}
	return &CUESchema{
		ctx:      cuectx,
		schema:   schema,
		messages: cfg.messages,
	}, nil
}

// Validate unifies values with the schema and reports every violation.
func (s *CUESchema) Validate(ctx context.Context, values Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unified, err := s.unify(values)
	if err != nil {
		return err
	}
	return s.issues(unified.Validate(cue.Concrete(true), cue.All()))
}

// ValidateField validates only field within the unified document.
func (s *CUESchema) ValidateField(ctx context.Context, field string, values Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unified, err := s.unify(values)
	if err != nil {
		return err
	}
	target := unified.LookupPath(cue.MakePath(cue.Str(field)))
	if !target.Exists() {
		return nil
	}
	return s.issues(target.Validate(cue.Concrete(true), cue.All()))
}

func (s *CUESchema) unify(values Values) (cue.Value, error) {
	document := make(map[string]any, len(values))
	for key, value := range values {
		if value != nil {
			document[key] = value
		}
	}
	data := s.ctx.Encode(document)
	if err := data.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("formstate: encode values for cue: %w", err)
	}
	return s.schema.Unify(data), nil
}

func (s *CUESchema) issues(err error) error {
	if err == nil {
		return nil
	}
	var issues []Issue
	for _, cueErr := range cueerrors.Errors(err) {
		path := cueErr.Path()
		format, args := cueErr.Msg()
		issue := Issue{Path: append([]string(nil), path...), Message: fmt.Sprintf(format, args...)}
		if message, ok := s.messages[issue.Field()]; ok {
			issue.Message = message
		}
		issues = append(issues, issue)
	}
	if len(issues) == 0 {
		return err
	}
	return NewIssueError(issues...)
}
