package ccx

import (
	"context"
	"sync/atomic"
)

// Holder is the single active-cohort slot of one request or unit of work.
// Hosts install a fresh Holder per request with NewContext; nothing is shared
// between requests.
type Holder struct {
	current atomic.Pointer[Cohort]
}

type holderKey struct{}

// NewContext returns a child of parent carrying a fresh, empty Holder.
func NewContext(parent context.Context) (context.Context, *Holder) {
	if parent == nil {
		parent = context.Background()
	}
	holder := &Holder{}
	return context.WithValue(parent, holderKey{}, holder), holder
}

// HolderFrom returns the Holder installed on ctx, or nil.
func HolderFrom(ctx context.Context) *Holder {
	if ctx == nil {
		return nil
	}
	holder, _ := ctx.Value(holderKey{}).(*Holder)
	return holder
}

// Current returns the cohort active on ctx.
func Current(ctx context.Context) (Cohort, bool) {
	return HolderFrom(ctx).Current()
}

// Current returns the active cohort, if any.
func (h *Holder) Current() (Cohort, bool) {
	if h == nil {
		return Cohort{}, false
	}
	cohort := h.current.Load()
	if cohort == nil {
		return Cohort{}, false
	}
	return *cohort, true
}

// Set installs cohort without saving the previous value. The middleware uses
// it together with a deferred Clear.
func (h *Holder) Set(cohort Cohort) {
	if h == nil {
		return
	}
	h.current.Store(&cohort)
}

// Clear empties the slot.
func (h *Holder) Clear() {
	if h == nil {
		return
	}
	h.current.Store(nil)
}

// Activate installs cohort and returns a guard that restores exactly the
// value that was active before the call, which may itself be a cohort from an
// outer activation. Callers defer the guard so it runs on every exit path.
func (h *Holder) Activate(cohort Cohort) (restore func()) {
	if h == nil {
		return func() {}
	}
	previous := h.current.Swap(&cohort)
	return func() {
		h.current.Store(previous)
	}
}

// WithActive runs fn with cohort active. When ctx carries no Holder a fresh
// one is installed for the duration of fn. The previous cohort is restored
// when fn returns, fails or panics.
func WithActive(ctx context.Context, cohort Cohort, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	holder := HolderFrom(ctx)
	if holder == nil {
		ctx, holder = NewContext(ctx)
	}
	restore := holder.Activate(cohort)
	defer restore()
	return fn(ctx)
}
