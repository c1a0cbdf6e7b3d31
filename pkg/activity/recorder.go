package activity

import (
	"context"
	"sync"
)

// Recorder is a Hook that keeps every event it receives. Err, when set, is
// returned from each Notify after the event is kept.
type Recorder struct {
	Err error

	mu     sync.Mutex
	events []Event
}

// Notify implements Hook.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns a copy of the kept events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Verbs lists the verb of every kept event in arrival order.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	verbs := make([]string, len(r.events))
	for i, event := range r.events {
		verbs[i] = event.Verb
	}
	return verbs
}
