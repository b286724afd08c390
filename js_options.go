package formstate

import "time"

// jsSettings is shared by the goja engine and its stub so option calls
// compile without the js_eval tag.
type jsSettings struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsSettings)

// JSWithProgramCache shares compiled goja programs through cache.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(s *jsSettings) {
		s.cache = cache
	}
}

// JSWithFunctionRegistry exposes registry functions as globals and through
// call(name, ...).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(s *jsSettings) {
		if registry != nil {
			s.registry = registry.Clone()
		}
	}
}

// JSWithTimeout interrupts a rule that runs longer than timeout.
func JSWithTimeout(timeout time.Duration) JSEvaluatorOption {
	return func(s *jsSettings) {
		s.timeout = timeout
	}
}

func newJSSettings(opts []JSEvaluatorOption) jsSettings {
	var s jsSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
