package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spriteforge/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run readiness checks for paths, definitions, and backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			results := preflight.RunAll(cmd.Context(), cfg, "")
			renderChecks(out, results, shouldColorize(out))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
