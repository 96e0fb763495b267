//go:build !js_eval

package persist

// NewJSEvaluator returns nil unless built with the js_eval tag; the plugin
// then falls back to the expr evaluator.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
