package ccx

import (
	"context"
	"sort"
	"strings"
)

// DefaultOverridableFields lists the block fields operators customise per
// cohort in a typical deployment.
var DefaultOverridableFields = []string{"due", "start", "visible_to_staff_only", "graded", "format"}

// PolicyInput describes an attempted override write.
type PolicyInput struct {
	Cohort   Cohort
	Location Location
	Field    string
	Value    any
}

// FieldPolicy decides whether a field may be overridden for a cohort.
type FieldPolicy interface {
	AllowOverride(ctx context.Context, in PolicyInput) (bool, error)
}

// PolicyFunc adapts a function to FieldPolicy.
type PolicyFunc func(ctx context.Context, in PolicyInput) (bool, error)

// AllowOverride implements FieldPolicy.
func (f PolicyFunc) AllowOverride(ctx context.Context, in PolicyInput) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f(ctx, in)
}

// AllowAll accepts every override.
func AllowAll() FieldPolicy {
	return PolicyFunc(func(context.Context, PolicyInput) (bool, error) { return true, nil })
}

// FieldAllowList accepts overrides for a fixed set of field names.
type FieldAllowList struct {
	fields map[string]struct{}
}

// AllowFields builds a FieldAllowList. Names are trimmed; empty names are
// dropped.
func AllowFields(names ...string) FieldAllowList {
	fields := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fields[name] = struct{}{}
	}
	return FieldAllowList{fields: fields}
}

// AllowOverride implements FieldPolicy.
func (l FieldAllowList) AllowOverride(_ context.Context, in PolicyInput) (bool, error) {
	_, ok := l.fields[in.Field]
	return ok, nil
}

// Fields returns the allowed names in sorted order.
func (l FieldAllowList) Fields() []string {
	out := make([]string, 0, len(l.fields))
	for name := range l.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
