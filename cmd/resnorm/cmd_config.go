package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/projectconfig"
	"github.com/umilab/resnorm/internal/validation"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the " + projectconfig.FileName + " configuration",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration: defaults overlaid with the nearest
` + projectconfig.FileName + ` (or --config) and the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}

			out := cmd.OutOrStdout()
			if cfg.Source != "" {
				fmt.Fprintf(out, "# source: %s\n", cfg.Source) //nolint:errcheck
			} else {
				fmt.Fprintln(out, "# source: defaults") //nolint:errcheck
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a configuration file against the schema",
		Long: `Validate a configuration file against the schema.

Without a path, the file given by --config or the nearest ` + projectconfig.FileName + `
is validated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				path = cfg.Source
			}

			out := cmd.OutOrStdout()
			if path == "" {
				fmt.Fprintf(out, "No %s found; defaults apply.\n", projectconfig.FileName) //nolint:errcheck
				return nil
			}
			return validateConfigFile(cmd, path)
		},
	}
}

func validateConfigFile(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", failure.ErrInvalidConfig, err)
	}

	if errs := validation.ValidateConfigBytes(data); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e) //nolint:errcheck
		}
		return fmt.Errorf("%w: %s: %d schema error(s)", failure.ErrInvalidConfig, path, len(errs))
	}
	if _, err := projectconfig.LoadFile(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path) //nolint:errcheck
	return nil
}
