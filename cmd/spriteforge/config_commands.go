package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"spriteforge/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration, model manifest, and pipeline",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			out := cmd.OutOrStdout()
			_, statErr := os.Stat(target)
			switch {
			case statErr == nil && !overwrite:
				fmt.Fprintf(out, "Keeping existing configuration at %s\n", target)
			case statErr != nil && !os.IsNotExist(statErr):
				return fmt.Errorf("check config path: %w", statErr)
			default:
				if err := config.CreateSample(target); err != nil {
					return fmt.Errorf("create sample config: %w", err)
				}
				fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			}

			cfg, _, _, err := config.Load(target)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			samples, err := cfg.WriteSamples(overwrite)
			if err != nil {
				return fmt.Errorf("write samples: %w", err)
			}
			for _, sample := range samples {
				verb := "Kept existing"
				if sample.Written {
					verb = "Wrote"
				}
				fmt.Fprintf(out, "%s %s\n", verb, sample.Path)
			}
			fmt.Fprintln(out, "Set fal.api_key (or export FAL_KEY) before running pipelines routed to fal.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
