package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ccx "github.com/goliatone/go-ccx"
)

// NewEvaluator builds the evaluator named by engine ("expr", "cel" or "js").
// An empty name selects expr.
func NewEvaluator(engine string, opts ...Option) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "expr":
		return NewExprEvaluator(opts...), nil
	case "cel":
		return NewCELEvaluator(opts...), nil
	case "js":
		evaluator := NewJSEvaluator(opts...)
		if evaluator == nil {
			return nil, ErrEngineUnavailable
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// Policy is a ccx.FieldPolicy backed by a boolean expression over Env, for
// example:
//
//	field in ["due", "start"] && cohort.course_id != ""
type Policy struct {
	// Now defaults to time.Now.
	Now func() time.Time

	engine     string
	expression string
	rule       Rule
	logger     EvaluatorLogger
}

var _ ccx.FieldPolicy = (*Policy)(nil)

// NewPolicy compiles expression with evaluator. A nil logger discards
// evaluation events.
func NewPolicy(evaluator Evaluator, expression string, logger EvaluatorLogger) (*Policy, error) {
	if evaluator == nil {
		return nil, errors.New("rules: evaluator must not be nil")
	}
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	return &Policy{
		engine:     evaluator.Engine(),
		expression: expression,
		rule:       rule,
		logger:     logger,
	}, nil
}

// Expression returns the source the policy was compiled from.
func (p *Policy) Expression() string {
	return p.expression
}

// AllowOverride implements ccx.FieldPolicy.
func (p *Policy) AllowOverride(_ context.Context, in ccx.PolicyInput) (bool, error) {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	env := NewEnv(in, now)

	start := time.Now()
	ok, err := p.rule.Allow(env)
	p.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   p.engine,
		Expr:     p.expression,
		Subject:  env.subject(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}
