package ctl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ccx "github.com/goliatone/go-ccx"
)

func newGetCommand(v *viper.Viper) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the override of one field, or null",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v, t, func(ctx context.Context, b *backend, cohort ccx.Cohort, block ccx.Block) error {
				value, err := b.overrides.Get(ctx, cohort, block, t.field, nil)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), value)
			})
		},
	}
	addTargetFlags(cmd, &t, true)
	return cmd
}

func newSetCommand(v *viper.Viper) *cobra.Command {
	var (
		t   target
		raw string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update the override of one field",
		Example: `  ccxctl set --cohort C1 --location block-v1:edX+DemoX+2024+type@sequential+block@week1 --field due --value '"2024-05-01T17:00:00Z"'
  ccxctl set --cohort C1 --location loc1 --field graded --value false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return fmt.Errorf("ccxctl: --value must be JSON: %w", err)
			}
			return run(cmd, v, t, func(ctx context.Context, b *backend, cohort ccx.Cohort, block ccx.Block) error {
				if err := b.overrides.Set(ctx, cohort, block, t.field, value); err != nil {
					return err
				}
				stored, err := b.overrides.Get(ctx, cohort, block, t.field, nil)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stored)
			})
		},
	}
	addTargetFlags(cmd, &t, true)
	cmd.Flags().StringVar(&raw, "value", "", "new value as JSON")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newClearCommand(v *viper.Viper) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the override of one field",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v, t, func(ctx context.Context, b *backend, cohort ccx.Cohort, block ccx.Block) error {
				return b.overrides.Clear(ctx, cohort, block, t.field)
			})
		},
	}
	addTargetFlags(cmd, &t, true)
	return cmd
}

func newListCommand(v *viper.Viper) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every override a cohort has on a block",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v, t, func(ctx context.Context, b *backend, cohort ccx.Cohort, block ccx.Block) error {
				values, err := b.overrides.Overrides(ctx, cohort, block)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), values)
			})
		},
	}
	addTargetFlags(cmd, &t, false)
	return cmd
}
