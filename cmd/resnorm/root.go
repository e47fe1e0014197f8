package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/umilab/resnorm/internal/projectconfig"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resnorm",
		Short: "resnorm - normalize instrument result files",
		Long: `resnorm normalizes instrument result files into flat comma-separated output.

"resnorm batch" merges every .res file of a directory into one output,
"resnorm remap" rewrites the key columns of a single CSV export.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "Path to a "+projectconfig.FileName+" file (default: searched upward from the working directory)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
		// .env never overrides variables already set.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to load .env", "error", err)
		}
	}

	// Add subcommands
	cmd.AddCommand(newBatchCommand())
	cmd.AddCommand(newRemapCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newHistoryCommand())

	return cmd
}

func execute(ctx context.Context) error {
	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the file named by --config, or the nearest
// .resnorm.yaml, and applies the environment overlay.
func loadConfig(cmd *cobra.Command) (*projectconfig.ProjectConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *projectconfig.ProjectConfig
		err error
	)
	if path != "" {
		cfg, err = projectconfig.LoadFile(path)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, wdErr
		}
		cfg, err = projectconfig.Load(wd)
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv(os.LookupEnv)
	if cfg.Source != "" {
		slog.Debug("Loaded config", "path", cfg.Source)
	}
	return cfg, nil
}
