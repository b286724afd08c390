//go:build js_eval

package formstate

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation runs
// on a fresh runtime so rules never share globals.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	settings := newJSSettings(opts)
	return &jsEvaluator{
		cache:    settings.cache,
		registry: settings.registry,
		timeout:  settings.timeout,
	}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	program, err := e.loadOrCompile(expression, compileConfig{})
	if err != nil {
		return nil, err
	}
	return e.run(ctx.withDefaults(), expression, program, compileConfig{})
}

func (e *jsEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	cfg := applyCompileOptions(opts)
	program, err := e.loadOrCompile(expression, cfg)
	if err != nil {
		return nil, err
	}
	return &jsCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
		cfg:        cfg,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string, cfg compileConfig) (*goja.Program, error) {
	if expression == "" {
		return nil, engineError("js", fmt.Errorf("expression must not be empty"))
	}
	key := cfg.cacheKey("js", expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("rule", wrapExpression(expression), true)
	if err != nil {
		return nil, compileError("js", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

// run executes program. JS has no static types, so a boolean requirement is
// checked on the result.
func (e *jsEvaluator) run(ctx RuleContext, expression string, program *goja.Program, cfg compileConfig) (any, error) {
	vm := goja.New()
	if err := e.injectContext(vm, ctx); err != nil {
		return nil, runError("js", expression, ctx.fieldLabel(), err)
	}
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(fmt.Errorf("rule exceeded %s", e.timeout))
		})
		defer timer.Stop()
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, runError("js", expression, ctx.fieldLabel(), err)
	}
	result := value.Export()
	if cfg.requireBool {
		if _, ok := result.(bool); !ok {
			return nil, runError("js", expression, ctx.fieldLabel(), fmt.Errorf("expression yielded %T, want bool", result))
		}
	}
	return result, nil
}

func (e *jsEvaluator) injectContext(vm *goja.Runtime, ctx RuleContext) error {
	for key, value := range ctx.bindings() {
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}
	if e.registry == nil {
		return nil
	}
	if err := vm.Set("call", func(name string, arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}); err != nil {
		return err
	}
	for _, name := range e.registry.Names() {
		fn := name
		if err := vm.Set(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		}); err != nil {
			return err
		}
	}
	return nil
}

func wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
	cfg        compileConfig
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, engineError("js", fmt.Errorf("compiled rule missing program"))
	}
	return r.evaluator.run(ctx.withDefaults(), r.expression, r.program, r.cfg)
}

func (e *jsEvaluator) engineName() string { return "js" }
