// Package activity reports override writes and deletes to audit hooks.
package activity

import (
	"context"
	"strings"
	"time"
)

// Verbs and object type of override lifecycle events.
const (
	VerbOverrideSet     = "ccx.override.set"
	VerbOverrideCleared = "ccx.override.cleared"
	ObjectTypeOverride  = "ccx.override"
)

// Event describes one persisted override change. OldValue is nil when a set
// created the override; NewValue is nil for a clear.
type Event struct {
	Verb       string
	ActorID    string
	Channel    string
	CohortID   string
	CourseID   string
	Location   string
	Field      string
	OldValue   any
	NewValue   any
	OccurredAt time.Time
}

// Valid reports whether the event names a verb and a complete override key.
func (e Event) Valid() bool {
	return e.Verb != "" && e.CohortID != "" && e.Location != "" && e.Field != ""
}

// ObjectID identifies the overridden field as "<cohort>/<location>/<field>".
func (e Event) ObjectID() string {
	return ObjectID(e.CohortID, e.Location, e.Field)
}

// Metadata flattens the override key and values for sinks that store
// free-form data.
func (e Event) Metadata() map[string]any {
	meta := map[string]any{
		"cohort_id": e.CohortID,
		"location":  e.Location,
		"field":     e.Field,
	}
	if e.CourseID != "" {
		meta["course_id"] = e.CourseID
	}
	if e.OldValue != nil {
		meta["old_value"] = e.OldValue
	}
	if e.NewValue != nil {
		meta["new_value"] = e.NewValue
	}
	return meta
}

// ObjectID joins the non-empty parts of an override key with "/".
func ObjectID(cohortID, location, field string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{cohortID, location, field} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return ObjectTypeOverride
	}
	return strings.Join(parts, "/")
}

type actorKey struct{}

// WithActor records the identifier of whoever performs override writes on
// ctx. Events built for those writes carry it as ActorID.
func WithActor(ctx context.Context, actorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actorID))
}

// ActorFrom returns the actor recorded with WithActor.
func ActorFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
