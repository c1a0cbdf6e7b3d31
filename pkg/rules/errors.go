package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyExpression is returned when compiling a blank expression.
	ErrEmptyExpression = errors.New("rules: expression must not be empty")
	// ErrNonBoolean is returned when an expression does not produce a boolean.
	ErrNonBoolean = errors.New("rules: expression did not return a boolean")
	// ErrUnknownEngine is returned by NewEvaluator for unsupported engine names.
	ErrUnknownEngine = errors.New("rules: unknown evaluator engine")
	// ErrEngineUnavailable is returned when the js engine was not compiled in.
	ErrEngineUnavailable = errors.New("rules: evaluator engine not available in this build")
	// ErrHelper is wrapped by every helper failure.
	ErrHelper = errors.New("rules: helper failed")
)

// EvaluationError reports a policy expression that failed to compile or run.
// Subject is empty for compile failures.
type EvaluationError struct {
	Engine  string
	Expr    string
	Subject string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Subject == "" {
		return fmt.Sprintf("rules: %s policy %q: %v", e.Engine, e.Expr, e.Err)
	}
	return fmt.Sprintf("rules: %s policy %q for %s: %v", e.Engine, e.Expr, e.Subject, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func evalError(engine, expression, subject string, err error) error {
	var existing *EvaluationError
	if errors.As(err, &existing) {
		return err
	}
	return &EvaluationError{Engine: engine, Expr: expression, Subject: subject, Err: err}
}

func nonBoolean(result any) error {
	return fmt.Errorf("%w: got %T", ErrNonBoolean, result)
}
