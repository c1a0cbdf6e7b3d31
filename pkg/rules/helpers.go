package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Helper is a function policy expressions can call by Name with exactly Arity
// arguments.
type Helper struct {
	Name  string
	Arity int
	Fn    func(args ...any) (any, error)
}

// Helpers is an immutable set of helpers.
type Helpers struct {
	byName map[string]Helper
	names  []string
}

// NewHelpers validates helpers and indexes them by name.
func NewHelpers(helpers ...Helper) (*Helpers, error) {
	set := &Helpers{byName: make(map[string]Helper, len(helpers))}
	for _, helper := range helpers {
		name := strings.TrimSpace(helper.Name)
		switch {
		case name == "":
			return nil, fmt.Errorf("rules: helper name must not be empty")
		case helper.Fn == nil:
			return nil, fmt.Errorf("rules: helper %q has no function", name)
		case helper.Arity < 0:
			return nil, fmt.Errorf("rules: helper %q has negative arity", name)
		}
		if _, exists := set.byName[name]; exists {
			return nil, fmt.Errorf("rules: helper %q registered twice", name)
		}
		helper.Name = name
		set.byName[name] = helper
		set.names = append(set.names, name)
	}
	sort.Strings(set.names)
	return set, nil
}

// Names returns the helper names in sorted order.
func (h *Helpers) Names() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.names...)
}

func (h *Helpers) list() []Helper {
	if h == nil {
		return nil
	}
	out := make([]Helper, 0, len(h.names))
	for _, name := range h.names {
		out = append(out, h.byName[name])
	}
	return out
}

func (h *Helpers) call(name string, args []any) (any, error) {
	var helper Helper
	ok := false
	if h != nil {
		helper, ok = h.byName[name]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrHelper, name)
	}
	if len(args) != helper.Arity {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrHelper, name, helper.Arity, len(args))
	}
	result, err := helper.Fn(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrHelper, name, err)
	}
	return result, nil
}

// DateHelpers compares schedule values such as due and start dates. Each
// argument is a time.Time or an RFC 3339 / 2006-01-02 string.
//
//	days_between(a, b)  fractional days from a to b
//	before(a, b)        a is strictly before b
//	after(a, b)         a is strictly after b
//	weekday(a)          lower-case weekday name in UTC
func DateHelpers() []Helper {
	return []Helper{
		{Name: "days_between", Arity: 2, Fn: func(args ...any) (any, error) {
			from, to, err := timePair(args)
			if err != nil {
				return nil, err
			}
			return to.Sub(from).Hours() / 24, nil
		}},
		{Name: "before", Arity: 2, Fn: func(args ...any) (any, error) {
			a, b, err := timePair(args)
			if err != nil {
				return nil, err
			}
			return a.Before(b), nil
		}},
		{Name: "after", Arity: 2, Fn: func(args ...any) (any, error) {
			a, b, err := timePair(args)
			if err != nil {
				return nil, err
			}
			return a.After(b), nil
		}},
		{Name: "weekday", Arity: 1, Fn: func(args ...any) (any, error) {
			t, err := asTime(args[0])
			if err != nil {
				return nil, err
			}
			return strings.ToLower(t.UTC().Weekday().String()), nil
		}},
	}
}

func timePair(args []any) (time.Time, time.Time, error) {
	a, err := asTime(args[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	b, err := asTime(args[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return a, b, nil
}

func asTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case string:
		v = strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("%q is not a date", v)
	}
	return time.Time{}, fmt.Errorf("%T is not a date", value)
}
