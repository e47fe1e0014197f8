package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/umilab/resnorm/internal/dataset"
	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/ledger"
	"github.com/umilab/resnorm/internal/projectconfig"
	"github.com/umilab/resnorm/internal/remap"
)

func newRemapCommand() *cobra.Command {
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "remap -i <file> -o <file>",
		Short: "Rewrite a CSV export as key|qualifier,value lines",
		Long: `Rewrite a CSV export as key|qualifier,value lines.

The first row is a header and is dropped. Every following row becomes
"<col 6>|<col 7>,<col 5>" (1-based columns). A row with fewer than seven
columns stops the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return remapCommandE(cmd, &flags)
		},
	}

	flags.register(cmd, "CSV file to remap")

	return cmd
}

func remapCommandE(cmd *cobra.Command, flags *pipelineFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := flags.resolvePaths(cmd, "Input file"); err != nil {
		return err
	}

	parseOpts := dataset.RemapOptions()
	parseOpts.Encoding = flags.inputEncoding(cfg.Remap.Encoding)

	run := ledger.Run{
		Pipeline:  "remap",
		Input:     flags.input,
		Output:    flags.output,
		StartedAt: time.Now(),
	}

	res, err := runRemap(cmd, flags, cfg, parseOpts)
	run.Files, run.Lines = 1, res.Lines
	if failure.Classify(err) == failure.CodeInput {
		run.Files = 0
	}
	recordRun(cmd.Context(), flags.ledgerFile(cfg), run, err)
	if err != nil {
		return err
	}

	out := flags.statusWriter(cmd)
	fmt.Fprintf(out, "Wrote %d lines from %s to %s\n", res.Lines, flags.input, flags.output) //nolint:errcheck
	if flags.summary {
		printRemapSummary(out, flags.input, res)
	}
	return nil
}

// runRemap checks the input before opening the output, so a missing input
// file never truncates an existing output file.
func runRemap(cmd *cobra.Command, flags *pipelineFlags, cfg *projectconfig.ProjectConfig, parseOpts dataset.Options) (remap.Result, error) {
	if err := checkInputFile(flags.input); err != nil {
		return remap.Result{}, err
	}

	w, err := flags.openOutput(cmd, cfg)
	if err != nil {
		return remap.Result{}, err
	}

	p := startProgress(cmd, "Remapping "+flags.input)
	res, runErr := remap.Run(cmd.Context(), flags.input, w, parseOpts)
	p.Stop()

	return res, errors.Join(runErr, w.Close())
}

func checkInputFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", failure.ErrInputNotFound, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", failure.ErrInputNotFound, path)
	}
	return nil
}
