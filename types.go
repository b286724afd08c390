package formstate

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
)

// Values maps field names to their stored values. A value may be nil, the
// empty string, or a typed value produced by Normalize or SetFieldValue.
type Values map[string]any

// Errors maps field names to a human-readable message. A missing key means the
// field has no error; empty messages are never stored.
type Errors map[string]string

// Touched maps field names to their touched flag.
type Touched map[string]bool

// Kind tags the input a change notification originates from.
type Kind string

const (
	KindText     Kind = "text"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindFile     Kind = "file"
	KindDate     Kind = "date"
	KindNumber   Kind = "number"
)

// File references a file selected in a file input.
type File struct {
	Name        string `json:"name"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Change is a raw input-change notification. Value carries the raw text for
// text-like kinds, Checked the checkbox state and Files the file selection.
type Change struct {
	Name    string
	Kind    Kind
	Value   string
	Checked bool
	Files   []File
}

// State is a detached snapshot of the controller state.
type State struct {
	Values       Values  `json:"values"`
	Errors       Errors  `json:"errors"`
	Touched      Touched `json:"touched"`
	IsSubmitting bool    `json:"is_submitting"`
}

// MarshalJSON encodes the snapshot for presentation clients.
func (s State) MarshalJSON() ([]byte, error) {
	type alias State
	return sonic.Marshal(alias(s))
}

// SubmitActions are the capabilities handed to a submit callback.
type SubmitActions interface {
	ResetForm()
	SetSubmitting(submitting bool)
}

// SubmitFunc receives the values of a valid form. It may block; Submit waits
// for it to return.
type SubmitFunc func(ctx context.Context, values Values, actions SubmitActions) error

// RuleContext carries inputs needed when evaluating a rule expression.
type RuleContext struct {
	Snapshot Values
	Field    string
	Value    any
	Now      *time.Time
	Args     map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultArgs() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultArgs()
}

func (ctx RuleContext) fieldLabel() string {
	if ctx.Field != "" {
		return ctx.Field
	}
	return "form"
}

// bindings returns the variables every engine exposes to an expression.
func (ctx RuleContext) bindings() map[string]any {
	env := make(map[string]any, len(ctx.Snapshot)+4)
	for key, value := range ctx.Snapshot {
		env[key] = value
	}
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["field"] = ctx.Field
	env["value"] = ctx.Value
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	requireBool bool
}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	f(cfg)
}

// CompileAsBool makes the engine reject expressions that cannot produce a
// boolean, at compile time where the engine can tell.
func CompileAsBool() CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.requireBool = true
	})
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	cfg := compileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	return cfg
}

func (cfg compileConfig) cacheKey(engine, expression string) string {
	if cfg.requireBool {
		return engine + ":bool:" + expression
	}
	return engine + ":" + expression
}
