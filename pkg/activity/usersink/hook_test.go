package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-ccx/pkg/activity"
	"github.com/goliatone/go-ccx/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func overrideEvent(verb string) activity.Event {
	return activity.Event{
		Verb:     verb,
		Channel:  "ccx",
		CohortID: "c1",
		CourseID: "course-v1:edX+DemoX+2024",
		Location: "loc1",
		Field:    "due",
		NewValue: "2024-05-08T17:00:00Z",
	}
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	tenant := uuid.New()
	hook := usersink.Hook{Sink: sink, Tenant: tenant}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	event := overrideEvent(activity.VerbOverrideSet)
	event.ActorID = actorID.String()
	event.OccurredAt = now

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenant {
		t.Fatalf("unexpected identities: %+v", record)
	}
	if record.Verb != activity.VerbOverrideSet || record.ObjectType != activity.ObjectTypeOverride || record.ObjectID != "c1/loc1/due" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "ccx" || record.OccurredAt != now {
		t.Fatalf("unexpected channel or time: %+v", record)
	}
	if record.Data["new_value"] != "2024-05-08T17:00:00Z" || record.Data["course_id"] != "course-v1:edX+DemoX+2024" {
		t.Fatalf("expected override metadata, got %v", record.Data)
	}
	if _, ok := record.Data["actor"]; ok {
		t.Fatalf("expected no raw actor for a uuid actor, got %v", record.Data["actor"])
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	if err := hook.Notify(context.Background(), activity.Event{Verb: activity.VerbOverrideSet}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records for an incomplete event, got %d", len(sink.records))
	}
	if err := (usersink.Hook{}).Notify(context.Background(), overrideEvent(activity.VerbOverrideSet)); err != nil {
		t.Fatalf("expected hook without sink to be a no-op, got %v", err)
	}
}

func TestHookNotifyDefaultsTimestamp(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	if err := hook.Notify(context.Background(), overrideEvent(activity.VerbOverrideCleared)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 || sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted, got %+v", sink.records)
	}
}

func TestHookNotifyUsesFallbackActor(t *testing.T) {
	sink := &recordingSink{}
	service := uuid.New()
	hook := usersink.Hook{Sink: sink, FallbackActor: service}

	event := overrideEvent(activity.VerbOverrideSet)
	event.ActorID = "ccxctl"
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].ActorID != service {
		t.Fatalf("expected fallback actor %s, got %s", service, sink.records[0].ActorID)
	}
	if sink.records[0].Data["actor"] != "ccxctl" {
		t.Fatalf("expected raw actor kept in data, got %v", sink.records[0].Data["actor"])
	}
}

func TestHookNotifyFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Verbs: []string{activity.VerbOverrideCleared}}

	_ = hook.Notify(context.Background(), overrideEvent(activity.VerbOverrideSet))
	_ = hook.Notify(context.Background(), overrideEvent(activity.VerbOverrideCleared))
	if len(sink.records) != 1 || sink.records[0].Verb != activity.VerbOverrideCleared {
		t.Fatalf("expected only the cleared event, got %+v", sink.records)
	}
}

func TestHookNotifyReturnsSinkErrors(t *testing.T) {
	errSink := errors.New("audit store down")
	hook := usersink.Hook{Sink: &recordingSink{err: errSink}}
	if err := hook.Notify(context.Background(), overrideEvent(activity.VerbOverrideSet)); !errors.Is(err, errSink) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
