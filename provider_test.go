package ccx_test

import (
	"context"
	"errors"
	"testing"

	ccx "github.com/goliatone/go-ccx"
	"github.com/goliatone/go-ccx/pkg/state"
)

func TestProviderChainFallsThroughUnsetProviders(t *testing.T) {
	overrides := ccx.NewOverrides(state.NewMemoryStore())
	block := unitBlock("loc1")
	c1 := ccx.Cohort{ID: "C1"}
	if err := overrides.Set(context.Background(), c1, block, "due_date", "cohort"); err != nil {
		t.Fatalf("set: %v", err)
	}

	var calls []string
	first := ccx.ProviderFunc(func(_ context.Context, _ ccx.Block, name string, def any) (any, error) {
		calls = append(calls, "first:"+name)
		return def, nil
	})
	chain := ccx.ProviderChain{nil, first, ccx.NewOverrideProvider(overrides)}

	err := ccx.WithActive(context.Background(), c1, func(ctx context.Context) error {
		got, err := chain.Get(ctx, block, "due_date", "D")
		if err != nil {
			return err
		}
		if got != "cohort" {
			t.Fatalf("expected cohort override, got %v", got)
		}
		got, err = chain.Get(ctx, block, "weight", 1.5)
		if err != nil {
			return err
		}
		if got != 1.5 {
			t.Fatalf("expected block default, got %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected first provider consulted twice, got %v", calls)
	}
}

func TestProviderChainFirstValueWins(t *testing.T) {
	fixed := ccx.ProviderFunc(func(context.Context, ccx.Block, string, any) (any, error) {
		return "fixed", nil
	})
	never := ccx.ProviderFunc(func(context.Context, ccx.Block, string, any) (any, error) {
		t.Fatalf("expected chain to stop at first value")
		return nil, nil
	})
	got, err := ccx.ProviderChain{fixed, never}.Get(context.Background(), unitBlock("loc1"), "due_date", "D")
	if err != nil || got != "fixed" {
		t.Fatalf("expected fixed, got %v (%v)", got, err)
	}
}

func TestProviderChainStopsOnError(t *testing.T) {
	errBoom := errors.New("boom")
	failing := ccx.ProviderFunc(func(context.Context, ccx.Block, string, any) (any, error) {
		return nil, errBoom
	})
	if _, err := (ccx.ProviderChain{failing}).Get(context.Background(), unitBlock("loc1"), "due_date", "D"); !errors.Is(err, errBoom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestProviderChainAcceptsUncomparableValues(t *testing.T) {
	slice := ccx.ProviderFunc(func(context.Context, ccx.Block, string, any) (any, error) {
		return []any{"a"}, nil
	})
	got, err := ccx.ProviderChain{slice}.Get(context.Background(), unitBlock("loc1"), "tags", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values, ok := got.([]any); !ok || len(values) != 1 {
		t.Fatalf("expected slice value, got %#v", got)
	}
}

func TestOverrideProviderWithoutOverrides(t *testing.T) {
	ctx, holder := ccx.NewContext(context.Background())
	holder.Set(ccx.Cohort{ID: "C1"})
	got, err := ccx.OverrideProvider{}.Get(ctx, unitBlock("loc1"), "due_date", "D")
	if err != nil || got != "D" {
		t.Fatalf("expected default, got %v (%v)", got, err)
	}
}

func TestOverrideProviderFollowsNestedActivation(t *testing.T) {
	overrides := ccx.NewOverrides(state.NewMemoryStore())
	provider := ccx.NewOverrideProvider(overrides)
	block := unitBlock("loc1")
	ctx := context.Background()
	for _, id := range []string{"C1", "C2"} {
		if err := overrides.Set(ctx, ccx.Cohort{ID: id}, block, "due_date", id); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	err := ccx.WithActive(ctx, ccx.Cohort{ID: "C1"}, func(outer context.Context) error {
		if err := ccx.WithActive(outer, ccx.Cohort{ID: "C2"}, func(inner context.Context) error {
			got, err := provider.Get(inner, block, "due_date", "D")
			if err != nil || got != "C2" {
				t.Fatalf("expected C2 inside nested scope, got %v (%v)", got, err)
			}
			return nil
		}); err != nil {
			return err
		}
		got, err := provider.Get(outer, block, "due_date", "D")
		if err != nil || got != "C1" {
			t.Fatalf("expected C1 after nested scope, got %v (%v)", got, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
