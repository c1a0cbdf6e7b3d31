// Package rules decides which cohort overrides are allowed with boolean
// expressions written in expr, CEL or JavaScript.
package rules

import (
	"time"

	ccx "github.com/goliatone/go-ccx"
)

// Env is everything a policy expression can see about one attempted
// override. Expressions read it through these variables:
//
//	field     string
//	location  string
//	value     the value being written
//	cohort    map with id, course_id and display_name
//	now       timestamp of the attempt
type Env struct {
	Field    string
	Location string
	Value    any
	Cohort   ccx.Cohort
	Now      time.Time
}

// NewEnv describes in as seen at now.
func NewEnv(in ccx.PolicyInput, now time.Time) Env {
	return Env{
		Field:    in.Field,
		Location: string(in.Location),
		Value:    in.Value,
		Cohort:   in.Cohort,
		Now:      now,
	}
}

func (e Env) vars() map[string]any {
	now := e.Now
	if now.IsZero() {
		now = time.Now()
	}
	return map[string]any{
		"field":    e.Field,
		"location": e.Location,
		"value":    e.Value,
		"cohort": map[string]string{
			"id":           e.Cohort.ID,
			"course_id":    e.Cohort.CourseID,
			"display_name": e.Cohort.DisplayName,
		},
		"now": now,
	}
}

// subject names the attempt in errors and logs.
func (e Env) subject() string {
	return "cohort:" + e.Cohort.ID + " field:" + e.Field
}

// Evaluator compiles policy expressions for one engine.
type Evaluator interface {
	Engine() string
	Compile(expression string) (Rule, error)
}

// Rule is a compiled policy expression.
type Rule interface {
	Allow(env Env) (bool, error)
}

func allowed(engine, expression string, env Env, result any) (bool, error) {
	ok, isBool := result.(bool)
	if !isBool {
		return false, evalError(engine, expression, env.subject(), nonBoolean(result))
	}
	return ok, nil
}
