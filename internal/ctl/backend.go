package ctl

import (
	"context"
	"fmt"
	"log/slog"

	ccx "github.com/goliatone/go-ccx"
	"github.com/goliatone/go-ccx/pkg/activity"
	"github.com/goliatone/go-ccx/pkg/postgres"
	"github.com/goliatone/go-ccx/pkg/rules"
	"github.com/goliatone/go-ccx/pkg/state"
	"github.com/goliatone/go-ccx/pkg/state/badgerstore"
)

// backend is an opened store plus the Overrides built on it.
type backend struct {
	store     state.Store
	pg        *postgres.Store
	overrides *ccx.Overrides
	close     func() error
}

func openBackend(ctx context.Context, cfg Config, logger *slog.Logger) (*backend, error) {
	b := &backend{}
	switch cfg.Store {
	case StorePostgres:
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		b.store, b.pg = pg, pg
		b.close = func() error { pg.Close(); return nil }
	case StoreBadger:
		store, err := badgerstore.Open(badgerstore.Config{Path: cfg.BadgerPath, SyncWrites: true, Logger: logger})
		if err != nil {
			return nil, err
		}
		b.store = store
		b.close = store.Close
	default:
		return nil, fmt.Errorf("ccxctl: unknown store %q", cfg.Store)
	}

	policy, err := buildPolicy(cfg.Policy, logger)
	if err != nil {
		_ = b.close()
		return nil, err
	}
	b.overrides = ccx.NewOverrides(b.store,
		ccx.WithLogger(ccx.SlogLogger(logger)),
		ccx.WithPolicy(policy),
		ccx.WithActivityHooks(activity.Hooks{activityLogHook(logger)}),
	)
	return b, nil
}

// buildPolicy compiles the configured expression. Expressions can call the
// date helpers (days_between, before, after, weekday).
func buildPolicy(cfg PolicyConfig, logger *slog.Logger) (ccx.FieldPolicy, error) {
	if cfg.Expression == "" {
		return ccx.AllowFields(ccx.DefaultOverridableFields...), nil
	}
	helpers, err := rules.NewHelpers(rules.DateHelpers()...)
	if err != nil {
		return nil, err
	}
	evaluator, err := rules.NewEvaluator(cfg.Engine,
		rules.WithProgramCache(rules.NewTTLProgramCache(cfg.CacheTTL, uint64(cfg.CacheSize))),
		rules.WithHelpers(helpers),
	)
	if err != nil {
		return nil, err
	}
	return rules.NewPolicy(evaluator, cfg.Expression, rules.SlogEvaluatorLogger(logger))
}

// cohort resolves id against the cohort table when one is available.
func (b *backend) cohort(ctx context.Context, id string) (ccx.Cohort, error) {
	if b.pg == nil {
		return ccx.Cohort{ID: id}, nil
	}
	return b.pg.Cohort(ctx, id)
}

func activityLogHook(logger *slog.Logger) activity.Hook {
	return activity.HookFunc(func(ctx context.Context, event activity.Event) error {
		logger.InfoContext(ctx, "ccx activity",
			slog.String("verb", event.Verb),
			slog.String("object_id", event.ObjectID()),
			slog.String("actor_id", event.ActorID),
			slog.String("channel", event.Channel),
		)
		return nil
	})
}
