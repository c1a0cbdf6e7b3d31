// Package ctl implements the ccxctl command line.
package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ccx "github.com/goliatone/go-ccx"
	"github.com/goliatone/go-ccx/pkg/activity"
)

type target struct {
	cohort   string
	location string
	field    string
}

// NewRootCommand builds the ccxctl command tree.
func NewRootCommand() *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:           "ccxctl",
		Short:         "Inspect and edit per-cohort field overrides",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("store", StoreBadger, "override store backend (postgres or badger)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("badger-path", "ccx-data", "Badger data directory")
	flags.String("actor", "", "actor id recorded on activity events")
	flags.Bool("verbose", false, "log at debug level")
	flags.String("policy-engine", "expr", "policy expression engine (expr, cel or js)")
	flags.String("policy-expression", "", "boolean expression deciding which fields may be overridden")
	flags.Duration("policy-cache-ttl", DefaultPolicyCacheTTL, "how long compiled policy expressions are cached")
	flags.Int("policy-cache-size", DefaultPolicyCacheSize, "maximum number of cached policy programs")
	for key, flag := range map[string]string{
		"store":             "store",
		"database_url":      "database-url",
		"badger_path":       "badger-path",
		"actor":             "actor",
		"verbose":           "verbose",
		"policy.engine":     "policy-engine",
		"policy.expression": "policy-expression",
		"policy.cache_ttl":  "policy-cache-ttl",
		"policy.cache_size": "policy-cache-size",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newGetCommand(v),
		newSetCommand(v),
		newClearCommand(v),
		newListCommand(v),
	)
	return root
}

// Execute runs ccxctl with args.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func addTargetFlags(cmd *cobra.Command, t *target, withField bool) {
	cmd.Flags().StringVar(&t.cohort, "cohort", "", "cohort id")
	cmd.Flags().StringVar(&t.location, "location", "", "block location")
	_ = cmd.MarkFlagRequired("cohort")
	_ = cmd.MarkFlagRequired("location")
	if withField {
		cmd.Flags().StringVar(&t.field, "field", "", "field name")
		_ = cmd.MarkFlagRequired("field")
	}
}

// run opens the configured backend and calls fn with the target's cohort
// and block.
func run(cmd *cobra.Command, v *viper.Viper, t target, fn func(ctx context.Context, b *backend, cohort ccx.Cohort, block ccx.Block) error) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Actor != "" {
		ctx = activity.WithActor(ctx, cfg.Actor)
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.close(); cerr != nil {
			logger.Error("ccxctl: close store", slog.Any("error", cerr))
		}
	}()

	cohort, err := b.cohort(ctx, strings.TrimSpace(t.cohort))
	if err != nil {
		return err
	}
	block := ccx.NewBlock(ccx.Location(strings.TrimSpace(t.location)), ccx.DefaultFieldCodecs())
	return fn(ctx, b, cohort, block)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("ccxctl: encode output: %w", err)
	}
	return nil
}
