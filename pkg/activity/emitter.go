package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is stamped on events when Config.Channel is empty.
const DefaultChannel = "ccx"

// Config controls override event emission.
type Config struct {
	// Disabled suppresses events even when hooks are attached.
	Disabled bool
	Channel  string
}

// Emitter stamps override events with their verb, channel and time and hands
// them to hooks. A nil Emitter emits nothing.
type Emitter struct {
	hooks   Hooks
	channel string
}

// NewEmitter returns nil when cfg disables emission or no hook is attached.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	hooks = hooks.compact()
	if cfg.Disabled || len(hooks) == 0 {
		return nil
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{hooks: hooks, channel: channel}
}

// Enabled reports whether events reach any hook.
func (e *Emitter) Enabled() bool {
	return e != nil
}

// Set reports a created or updated override.
func (e *Emitter) Set(ctx context.Context, event Event) error {
	event.Verb = VerbOverrideSet
	return e.emit(ctx, event)
}

// Cleared reports a removed override. NewValue is dropped.
func (e *Emitter) Cleared(ctx context.Context, event Event) error {
	event.Verb = VerbOverrideCleared
	event.NewValue = nil
	return e.emit(ctx, event)
}

func (e *Emitter) emit(ctx context.Context, event Event) error {
	if e == nil {
		return nil
	}
	if event.Channel == "" {
		event.Channel = e.channel
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return e.hooks.Notify(ctx, event)
}
