package rules

import (
	"fmt"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	cfg    evaluatorConfig
	env    *celgo.Env
	envErr error
}

// NewCELEvaluator compiles policies with cel-go. field and location are
// strings, cohort is a map of strings, now is a timestamp and value is dyn.
// Helpers take and return dyn values.
func NewCELEvaluator(opts ...Option) Evaluator {
	e := &celEvaluator{cfg: applyOptions(opts)}
	e.env, e.envErr = e.buildEnv()
	return e
}

func (e *celEvaluator) Engine() string {
	return "cel"
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("field", celgo.StringType),
		celgo.Variable("location", celgo.StringType),
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("cohort", celgo.MapType(celgo.StringType, celgo.StringType)),
		celgo.Variable("now", celgo.TimestampType),
	}
	for _, helper := range e.cfg.helpers.list() {
		params := make([]*celgo.Type, helper.Arity)
		for i := range params {
			params[i] = celgo.DynType
		}
		opts = append(opts, celgo.Function(helper.Name,
			celgo.Overload(fmt.Sprintf("%s_dyn_%d", helper.Name, helper.Arity), params, celgo.DynType, e.binding(helper)),
		))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) binding(helper Helper) celgo.OverloadOpt {
	invoke := func(values ...ref.Val) ref.Val {
		args := make([]any, len(values))
		for i, value := range values {
			args[i] = value.Value()
		}
		result, err := e.cfg.helpers.call(helper.Name, args)
		if err != nil {
			return types.NewErr("%v", err)
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
	switch helper.Arity {
	case 1:
		return celgo.UnaryBinding(func(arg ref.Val) ref.Val { return invoke(arg) })
	case 2:
		return celgo.BinaryBinding(func(lhs, rhs ref.Val) ref.Val { return invoke(lhs, rhs) })
	default:
		return celgo.FunctionBinding(invoke)
	}
}

func (e *celEvaluator) Compile(expression string) (Rule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, evalError(e.Engine(), expression, "", ErrEmptyExpression)
	}
	if e.envErr != nil {
		return nil, evalError(e.Engine(), expression, "", e.envErr)
	}
	if cached, ok := e.cfg.cached(e.Engine(), expression); ok {
		if program, ok := cached.(celgo.Program); ok {
			return &celRule{expression: expression, program: program}, nil
		}
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, evalError(e.Engine(), expression, "", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(celgo.BoolType) && !out.IsExactType(celgo.DynType) {
		return nil, evalError(e.Engine(), expression, "", fmt.Errorf("%w: got %s", ErrNonBoolean, out))
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, evalError(e.Engine(), expression, "", err)
	}
	e.cfg.store(e.Engine(), expression, program)
	return &celRule{expression: expression, program: program}, nil
}

type celRule struct {
	expression string
	program    celgo.Program
}

func (r *celRule) Allow(env Env) (bool, error) {
	out, _, err := r.program.Eval(env.vars())
	if err != nil {
		return false, evalError("cel", r.expression, env.subject(), err)
	}
	return allowed("cel", r.expression, env, out.Value())
}
