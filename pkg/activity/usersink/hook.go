// Package usersink forwards override activity to a go-users ActivitySink so
// override writes land in the same audit trail as user management events.
package usersink

import (
	"context"
	"slices"
	"strings"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-ccx/pkg/activity"
)

// Hook records override events as go-users activity.
type Hook struct {
	Sink usertypes.ActivitySink
	// FallbackActor is recorded when an event has no parseable actor id,
	// typically a service account for CLI or batch writes.
	FallbackActor uuid.UUID
	// Tenant is stamped on every record. go-users scopes audit queries by it.
	Tenant uuid.UUID
	// Verbs restricts forwarding to the listed verbs. Empty forwards all.
	Verbs []string
}

var _ activity.Hook = Hook{}

// Notify implements activity.Hook.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Valid() || !h.forwards(event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, h.record(event))
}

func (h Hook) record(event activity.Event) usertypes.ActivityRecord {
	data := event.Metadata()
	actor, err := uuid.Parse(strings.TrimSpace(event.ActorID))
	if err != nil {
		actor = h.FallbackActor
		if event.ActorID != "" {
			data["actor"] = event.ActorID
		}
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return usertypes.ActivityRecord{
		ActorID:    actor,
		TenantID:   h.Tenant,
		Verb:       event.Verb,
		ObjectType: activity.ObjectTypeOverride,
		ObjectID:   event.ObjectID(),
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: occurred,
	}
}

func (h Hook) forwards(verb string) bool {
	return len(h.Verbs) == 0 || slices.Contains(h.Verbs, verb)
}
