package rules

import (
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	cfg evaluatorConfig
}

// NewExprEvaluator compiles policies with expr-lang/expr. Expressions are
// type-checked against Env and must produce a boolean.
func NewExprEvaluator(opts ...Option) Evaluator {
	return &exprEvaluator{cfg: applyOptions(opts)}
}

func (e *exprEvaluator) Engine() string {
	return "expr"
}

func (e *exprEvaluator) Compile(expression string) (Rule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, evalError(e.Engine(), expression, "", ErrEmptyExpression)
	}
	if cached, ok := e.cfg.cached(e.Engine(), expression); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return &exprRule{expression: expression, program: program}, nil
		}
	}

	options := []exprlang.Option{
		exprlang.Env(Env{}.vars()),
		exprlang.AsBool(),
	}
	for _, helper := range e.cfg.helpers.list() {
		name := helper.Name
		helpers := e.cfg.helpers
		options = append(options, exprlang.Function(name, func(args ...any) (any, error) {
			return helpers.call(name, args)
		}))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, evalError(e.Engine(), expression, "", err)
	}
	e.cfg.store(e.Engine(), expression, program)
	return &exprRule{expression: expression, program: program}, nil
}

type exprRule struct {
	expression string
	program    *exprvm.Program
}

func (r *exprRule) Allow(env Env) (bool, error) {
	result, err := exprlang.Run(r.program, env.vars())
	if err != nil {
		return false, evalError("expr", r.expression, env.subject(), err)
	}
	return allowed("expr", r.expression, env, result)
}
