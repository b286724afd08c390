package formstate

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions through call(name, ...).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// CELWithFields declares field variables up front so rules can be checked at
// compile time. Fields not declared here are added on first evaluation.
func CELWithFields(names ...string) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.fields = append(e.fields, names...)
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

// celEvaluator type-checks against a declared variable set, so programs are
// keyed by expression plus the sorted field names they were checked with.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	fields   []string

	mu       sync.Mutex
	programs map[string]*celProgram
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{programs: map[string]*celProgram{}}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	return e.run(ctx.withDefaults(), expression, compileConfig{})
}

// Compile checks expression against the declared fields and returns a rule
// that re-checks only when the value bag carries new field names.
func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	cfg := applyCompileOptions(opts)
	if _, err := e.loadOrCompile(expression, e.variableNames(nil), cfg); err != nil {
		return nil, err
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
		cfg:        cfg,
	}, nil
}

func (e *celEvaluator) run(ctx RuleContext, expression string, cfg compileConfig) (any, error) {
	program, err := e.loadOrCompile(expression, e.variableNames(ctx.Snapshot), cfg)
	if err != nil {
		return nil, err
	}
	out, _, err := program.program.Eval(e.activation(ctx))
	if err != nil {
		return nil, runError("cel", expression, ctx.fieldLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) variableNames(snapshot Values) []string {
	seen := make(map[string]struct{}, len(e.fields)+len(snapshot))
	names := make([]string, 0, len(e.fields)+len(snapshot))
	add := func(name string) {
		if _, reserved := celReserved[name]; reserved || !celIdentifier(name) {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, name := range e.fields {
		add(name)
	}
	for name := range snapshot {
		add(name)
	}
	sort.Strings(names)
	return names
}

var celReserved = map[string]struct{}{
	"now": {}, "args": {}, "field": {}, "value": {}, "call": {},
	"true": {}, "false": {}, "null": {}, "in": {}, "as": {}, "break": {},
	"const": {}, "continue": {}, "else": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "let": {}, "loop": {}, "package": {},
	"namespace": {}, "return": {}, "var": {}, "void": {}, "while": {},
}

var reflectAnySlice = reflect.TypeOf([]any{})

// celIdentifier reports whether name can be declared as a CEL variable.
// Other field names stay reachable through value when they are the rule's
// own field.
func celIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (e *celEvaluator) loadOrCompile(expression string, variables []string, cfg compileConfig) (*celProgram, error) {
	if expression == "" {
		return nil, engineError("cel", fmt.Errorf("expression must not be empty"))
	}
	key := cfg.cacheKey("cel", expression) + "|" + strings.Join(variables, ",")
	if program := e.cached(key); program != nil {
		return program, nil
	}

	env, err := e.buildEnv(variables)
	if err != nil {
		return nil, engineError("cel", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, compileError("cel", expression, issues.Err())
	}
	if cfg.requireBool {
		output := ast.OutputType()
		if !output.IsExactType(types.BoolType) && !output.IsExactType(types.DynType) {
			return nil, compileError("cel", expression, fmt.Errorf("expression yields %s, want bool", output))
		}
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, compileError("cel", expression, err)
	}

	bundle := &celProgram{env: env, program: prg}
	e.store(key, bundle)
	return bundle, nil
}

func (e *celEvaluator) cached(key string) *celProgram {
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program
			}
		}
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.programs[key]
}

func (e *celEvaluator) store(key string, program *celProgram) {
	if e.cache != nil {
		e.cache.Set(key, program)
		return
	}
	e.mu.Lock()
	e.programs[key] = program
	e.mu.Unlock()
}

func (e *celEvaluator) buildEnv(variables []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("field", celgo.StringType),
		celgo.Variable("value", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_dyn",
				[]*celgo.Type{celgo.StringType, celgo.DynType},
				celgo.DynType,
				celgo.BinaryBinding(func(name, arg ref.Val) ref.Val {
					return e.callRegistry([]ref.Val{name, arg})
				}),
			),
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(func(name, list ref.Val) ref.Val {
					return e.callRegistryList(name, list)
				}),
			),
		))
	}
	for _, name := range variables {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx RuleContext) map[string]any {
	activation := ctx.bindings()
	for key, value := range activation {
		activation[key] = celNative(value)
	}
	return activation
}

// celNative converts values CEL cannot adapt on its own. Files are exposed as
// maps so rules can inspect name and size.
func celNative(value any) any {
	switch v := value.(type) {
	case File:
		return fileMap(v)
	case []File:
		out := make([]any, len(v))
		for i, file := range v {
			out[i] = fileMap(file)
		}
		return out
	case Values:
		return map[string]any(v)
	default:
		return value
	}
}

func fileMap(file File) map[string]any {
	return map[string]any{
		"name":         file.Name,
		"size":         file.Size,
		"content_type": file.ContentType,
		"path":         file.Path,
	}
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
	cfg        compileConfig
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, engineError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.run(ctx.withDefaults(), r.expression, r.cfg)
}

func (e *celEvaluator) callRegistry(values []ref.Val) ref.Val {
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("formstate: call name must be string")
	}
	args := make([]any, 0, len(values)-1)
	for _, val := range values[1:] {
		args = append(args, val.Value())
	}
	return e.callResult(name, args)
}

func (e *celEvaluator) callRegistryList(nameVal, listVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("formstate: call name must be string")
	}
	native, err := listVal.ConvertToNative(reflectAnySlice)
	if err != nil {
		return types.NewErr("formstate: call arguments: %v", err)
	}
	return e.callResult(name, native.([]any))
}

func (e *celEvaluator) callResult(name string, args []any) ref.Val {
	if e.registry == nil {
		return types.NewErr("formstate: function registry not configured")
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

func (e *celEvaluator) engineName() string { return "cel" }
