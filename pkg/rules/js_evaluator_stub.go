//go:build !js_eval

package rules

// NewJSEvaluator returns nil unless the binary is built with the js_eval tag.
func NewJSEvaluator(...Option) Evaluator {
	return nil
}

// JSAvailable reports whether the binary was built with the js_eval tag.
func JSAvailable() bool {
	return false
}
