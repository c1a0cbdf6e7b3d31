package ccx

import (
	"context"
	"errors"
	"testing"
)

func TestCurrentWithoutHolder(t *testing.T) {
	if _, ok := Current(context.Background()); ok {
		t.Fatalf("expected no cohort without a holder")
	}
	var holder *Holder
	holder.Set(Cohort{ID: "c1"})
	holder.Clear()
	if _, ok := holder.Current(); ok {
		t.Fatalf("expected nil holder to stay empty")
	}
}

func TestHolderSetAndClear(t *testing.T) {
	ctx, holder := NewContext(context.Background())
	holder.Set(Cohort{ID: "c1"})
	got, ok := Current(ctx)
	if !ok || got.ID != "c1" {
		t.Fatalf("expected c1 active, got %+v (%v)", got, ok)
	}
	holder.Clear()
	if _, ok := Current(ctx); ok {
		t.Fatalf("expected no cohort after clear")
	}
}

func TestNestedActivationRestoresOuterCohort(t *testing.T) {
	ctx, holder := NewContext(context.Background())

	restoreOuter := holder.Activate(Cohort{ID: "c1"})
	restoreInner := holder.Activate(Cohort{ID: "c2"})
	if got, _ := Current(ctx); got.ID != "c2" {
		t.Fatalf("expected c2 inside inner scope, got %q", got.ID)
	}
	restoreInner()
	got, ok := Current(ctx)
	if !ok || got.ID != "c1" {
		t.Fatalf("expected c1 after inner scope, got %+v (%v)", got, ok)
	}
	restoreOuter()
	if _, ok := Current(ctx); ok {
		t.Fatalf("expected no cohort after outer scope")
	}
}

func TestWithActiveRestoresOnError(t *testing.T) {
	ctx, holder := NewContext(context.Background())
	holder.Set(Cohort{ID: "outer"})
	errBoom := errors.New("boom")

	err := WithActive(ctx, Cohort{ID: "inner"}, func(ctx context.Context) error {
		got, _ := Current(ctx)
		if got.ID != "inner" {
			t.Fatalf("expected inner active, got %q", got.ID)
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if got, _ := Current(ctx); got.ID != "outer" {
		t.Fatalf("expected outer restored, got %q", got.ID)
	}
}

func TestWithActiveRestoresOnPanic(t *testing.T) {
	ctx, holder := NewContext(context.Background())
	holder.Set(Cohort{ID: "outer"})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = WithActive(ctx, Cohort{ID: "inner"}, func(context.Context) error {
			panic("render failed")
		})
	}()

	if got, _ := Current(ctx); got.ID != "outer" {
		t.Fatalf("expected outer restored after panic, got %q", got.ID)
	}
}

func TestWithActiveInstallsHolderWhenMissing(t *testing.T) {
	parent := context.Background()
	err := WithActive(parent, Cohort{ID: "c1"}, func(ctx context.Context) error {
		got, ok := Current(ctx)
		if !ok || got.ID != "c1" {
			t.Fatalf("expected c1 active, got %+v (%v)", got, ok)
		}
		return WithActive(ctx, Cohort{ID: "c2"}, func(ctx context.Context) error {
			if got, _ := Current(ctx); got.ID != "c2" {
				t.Fatalf("expected c2 active, got %q", got.ID)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := Current(parent); ok {
		t.Fatalf("expected parent context untouched")
	}
}

func TestHoldersAreIsolated(t *testing.T) {
	ctxA, holderA := NewContext(context.Background())
	ctxB, _ := NewContext(context.Background())
	holderA.Set(Cohort{ID: "c1"})
	if _, ok := Current(ctxB); ok {
		t.Fatalf("expected second request to see no cohort")
	}
	if got, _ := Current(ctxA); got.ID != "c1" {
		t.Fatalf("expected first request to see c1, got %q", got.ID)
	}
}
