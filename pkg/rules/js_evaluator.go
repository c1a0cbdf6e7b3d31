//go:build js_eval

package rules

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cfg evaluatorConfig
}

// NewJSEvaluator compiles policies as JavaScript expressions run by goja.
// Each decision runs in a fresh runtime.
func NewJSEvaluator(opts ...Option) Evaluator {
	return &jsEvaluator{cfg: applyOptions(opts)}
}

// JSAvailable reports whether the binary was built with the js_eval tag.
func JSAvailable() bool {
	return true
}

func (e *jsEvaluator) Engine() string {
	return "js"
}

func (e *jsEvaluator) Compile(expression string) (Rule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, evalError(e.Engine(), expression, "", ErrEmptyExpression)
	}
	if cached, ok := e.cfg.cached(e.Engine(), expression); ok {
		if program, ok := cached.(*goja.Program); ok {
			return &jsRule{expression: expression, program: program, helpers: e.cfg.helpers}, nil
		}
	}
	program, err := goja.Compile("policy", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, evalError(e.Engine(), expression, "", err)
	}
	e.cfg.store(e.Engine(), expression, program)
	return &jsRule{expression: expression, program: program, helpers: e.cfg.helpers}, nil
}

type jsRule struct {
	expression string
	program    *goja.Program
	helpers    *Helpers
}

func (r *jsRule) Allow(env Env) (bool, error) {
	vm := goja.New()
	for name, value := range env.vars() {
		if err := vm.Set(name, value); err != nil {
			return false, evalError("js", r.expression, env.subject(), err)
		}
	}
	for _, helper := range r.helpers.list() {
		name := helper.Name
		if err := vm.Set(name, func(args ...any) (any, error) {
			return r.helpers.call(name, args)
		}); err != nil {
			return false, evalError("js", r.expression, env.subject(), err)
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return false, evalError("js", r.expression, env.subject(), err)
	}
	return allowed("js", r.expression, env, value.Export())
}
