package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func dueEvent() Event {
	return Event{
		CohortID: "c1",
		CourseID: "course-v1:edX+DemoX+2024",
		Location: "loc1",
		Field:    "due",
		OldValue: "2024-01-01T00:00:00Z",
		NewValue: "2024-02-01T00:00:00Z",
	}
}

func TestEventMetadataAndObjectID(t *testing.T) {
	event := dueEvent()
	if got := event.ObjectID(); got != "c1/loc1/due" {
		t.Fatalf("unexpected object id %q", got)
	}
	for key, want := range map[string]any{
		"cohort_id": "c1",
		"course_id": "course-v1:edX+DemoX+2024",
		"location":  "loc1",
		"field":     "due",
		"old_value": "2024-01-01T00:00:00Z",
		"new_value": "2024-02-01T00:00:00Z",
	} {
		if got := event.Metadata()[key]; got != want {
			t.Fatalf("expected metadata %s=%v, got %v", key, want, got)
		}
	}

	created := Event{CohortID: "c1", Location: "loc1", Field: "due", NewValue: "x"}
	meta := created.Metadata()
	if _, ok := meta["old_value"]; ok {
		t.Fatalf("expected no old_value for a created override, got %+v", meta)
	}
	if _, ok := meta["course_id"]; ok {
		t.Fatalf("expected no course_id without a course, got %+v", meta)
	}
}

func TestObjectIDSkipsEmptyParts(t *testing.T) {
	if got := ObjectID("", " ", ""); got != ObjectTypeOverride {
		t.Fatalf("expected fallback object id, got %q", got)
	}
	if got := ObjectID("c1", "", "due"); got != "c1/due" {
		t.Fatalf("unexpected object id %q", got)
	}
}

func TestActorContext(t *testing.T) {
	if got := ActorFrom(context.Background()); got != "" {
		t.Fatalf("expected empty actor, got %q", got)
	}
	ctx := WithActor(context.Background(), " coach-1 ")
	if got := ActorFrom(ctx); got != "coach-1" {
		t.Fatalf("expected trimmed actor, got %q", got)
	}
}

func TestHooksDropIncompleteEvents(t *testing.T) {
	recorder := &Recorder{}
	hooks := Hooks{recorder}

	incomplete := dueEvent()
	incomplete.Verb = VerbOverrideSet
	incomplete.Field = ""
	if err := hooks.Notify(context.Background(), incomplete); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(recorder.Events()) != 0 {
		t.Fatalf("expected incomplete event dropped, got %+v", recorder.Events())
	}
}

func TestHooksNotifyEveryHookAndJoinErrors(t *testing.T) {
	recorder := &Recorder{}
	errSink := errors.New("sink down")
	errMail := errors.New("mail down")
	var sawContext bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			sawContext = ctx != nil
			return errSink
		}),
		nil,
		recorder,
		HookFunc(func(context.Context, Event) error { return errMail }),
	}
	event := dueEvent()
	event.Verb = VerbOverrideSet

	err := hooks.Notify(nil, event)
	if !errors.Is(err, errSink) || !errors.Is(err, errMail) {
		t.Fatalf("expected joined errors, got %v", err)
	}
	if !sawContext {
		t.Fatalf("expected a background context for nil ctx")
	}
	if len(recorder.Events()) != 1 {
		t.Fatalf("expected later hooks to run after a failure, got %d events", len(recorder.Events()))
	}
}

func TestNewEmitterWithoutHooksOrDisabled(t *testing.T) {
	if NewEmitter(nil, Config{}).Enabled() {
		t.Fatalf("expected no emitter without hooks")
	}
	if NewEmitter(Hooks{nil}, Config{}).Enabled() {
		t.Fatalf("expected nil hooks ignored")
	}
	recorder := &Recorder{}
	disabled := NewEmitter(Hooks{recorder}, Config{Disabled: true})
	if disabled.Enabled() {
		t.Fatalf("expected disabled emitter")
	}
	if err := disabled.Set(context.Background(), dueEvent()); err != nil {
		t.Fatalf("expected nil emitter to accept events, got %v", err)
	}
	if len(recorder.Events()) != 0 {
		t.Fatalf("expected nothing emitted while disabled")
	}
}

func TestEmitterStampsVerbChannelAndTime(t *testing.T) {
	recorder := &Recorder{}
	emitter := NewEmitter(Hooks{recorder}, Config{})
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	set := dueEvent()
	set.OccurredAt = when
	if err := emitter.Set(context.Background(), set); err != nil {
		t.Fatalf("set: %v", err)
	}
	cleared := dueEvent()
	cleared.Channel = "audit"
	if err := emitter.Cleared(context.Background(), cleared); err != nil {
		t.Fatalf("cleared: %v", err)
	}

	events := recorder.Events()
	if got := recorder.Verbs(); len(got) != 2 || got[0] != VerbOverrideSet || got[1] != VerbOverrideCleared {
		t.Fatalf("unexpected verbs %v", got)
	}
	if events[0].Channel != DefaultChannel || !events[0].OccurredAt.Equal(when) {
		t.Fatalf("unexpected set event %+v", events[0])
	}
	if events[1].Channel != "audit" || events[1].OccurredAt.IsZero() {
		t.Fatalf("unexpected cleared event %+v", events[1])
	}
	if events[1].NewValue != nil || events[1].OldValue == nil {
		t.Fatalf("expected cleared event to keep only the old value, got %+v", events[1])
	}
}

func TestRecorderReturnsConfiguredError(t *testing.T) {
	errBoom := errors.New("boom")
	recorder := &Recorder{Err: errBoom}
	event := dueEvent()
	event.Verb = VerbOverrideSet
	if err := recorder.Notify(context.Background(), event); !errors.Is(err, errBoom) {
		t.Fatalf("expected configured error, got %v", err)
	}
	if len(recorder.Events()) != 1 {
		t.Fatalf("expected event kept despite error")
	}
	events := recorder.Events()
	events[0].Field = "changed"
	if recorder.Events()[0].Field != "due" {
		t.Fatalf("expected Events to return a copy")
	}
}
