//go:build !js_eval

package formstate

// NewJSEvaluator is unavailable without the js_eval build tag and returns nil.
// NewRuleSet reports ErrNoEvaluator for a nil engine.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSSettings(opts)
	return nil
}
