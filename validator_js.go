//go:build js_eval

package formstate

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

// NewJSFunc compiles a script defining validate(values), which returns an
// object mapping field names to messages. Each call runs on a fresh runtime
// and is interrupted when ctx is done.
func NewJSFunc(source string) (ValidateFunc, error) {
	program, err := goja.Compile("validate.js", source, true)
	if err != nil {
		return nil, compileError("js", "validate", err)
	}
	return func(ctx context.Context, values Values) (Errors, error) {
		vm := goja.New()
		stop := context.AfterFunc(ctx, func() {
			vm.Interrupt(ctx.Err())
		})
		defer stop()

		if _, err := vm.RunProgram(program); err != nil {
			return nil, runError("js", "validate", "form", err)
		}
		validate, ok := goja.AssertFunction(vm.Get("validate"))
		if !ok {
			return nil, engineError("js", fmt.Errorf("script does not define validate(values)"))
		}
		result, err := validate(goja.Undefined(), vm.ToValue(map[string]any(values)))
		if err != nil {
			return nil, runError("js", "validate", "form", err)
		}
		return exportErrors(result)
	}, nil
}

func exportErrors(result goja.Value) (Errors, error) {
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return Errors{}, nil
	}
	exported, ok := result.Export().(map[string]any)
	if !ok {
		return nil, engineError("js", fmt.Errorf("validate returned %T, want object", result.Export()))
	}
	out := make(Errors, len(exported))
	for field, message := range exported {
		switch m := message.(type) {
		case nil:
		case string:
			out[field] = m
		default:
			out[field] = fmt.Sprint(m)
		}
	}
	return out, nil
}
