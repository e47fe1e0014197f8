package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/umilab/resnorm/internal/batch"
	"github.com/umilab/resnorm/internal/collect"
	"github.com/umilab/resnorm/internal/dataset"
	"github.com/umilab/resnorm/internal/ledger"
	"github.com/umilab/resnorm/internal/projectconfig"
)

type batchFlags struct {
	pipelineFlags
	sort bool
}

func newBatchCommand() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "batch -i <dir> -o <file>",
		Short: "Normalize every .res file of a directory into one output",
		Long: `Normalize every .res file of a directory into one output.

Each file contributes its bare name on a line of its own, followed by one
line per record. "#Template" marker lines are kept as they are; on data
lines the leading token of the first field is dropped and its remaining
words are joined with underscores. All spaces are removed and fields are
joined with commas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return batchCommandE(cmd, &flags)
		},
	}

	flags.register(cmd, "Directory containing the .res files")
	cmd.Flags().BoolVar(&flags.sort, "sort", true, "Process files in name order (false: directory order)")

	return cmd
}

func batchCommandE(cmd *cobra.Command, flags *batchFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := flags.resolvePaths(cmd, "Input directory"); err != nil {
		return err
	}

	collectOpts := collect.DefaultOptions()
	if cfg.Batch.Extension != "" {
		collectOpts.Extension = cfg.Batch.Extension
	}
	collectOpts.Sorted = cfg.SortFiles()
	if cmd.Flags().Changed("sort") {
		collectOpts.Sorted = flags.sort
	}
	parseOpts := dataset.BatchOptions()
	parseOpts.Marker = cfg.Batch.Marker
	parseOpts.Encoding = flags.inputEncoding(cfg.Batch.Encoding)

	run := ledger.Run{
		Pipeline:  "batch",
		Input:     flags.input,
		Output:    flags.output,
		StartedAt: time.Now(),
	}

	res, err := runBatch(cmd, flags, cfg, collectOpts, parseOpts)
	run.Files, run.Lines = res.Files, res.Lines
	recordRun(cmd.Context(), flags.ledgerFile(cfg), run, err)
	if err != nil {
		return err
	}

	out := flags.statusWriter(cmd)
	fmt.Fprintf(out, "Wrote %d lines from %d files to %s\n", res.Lines, res.Files, flags.output) //nolint:errcheck
	if flags.summary {
		printBatchSummary(out, res)
	}
	return nil
}

// runBatch collects the input files before opening the output, so a
// missing input directory never truncates an existing output file.
func runBatch(cmd *cobra.Command, flags *batchFlags, cfg *projectconfig.ProjectConfig, collectOpts collect.Options, parseOpts dataset.Options) (batch.Result, error) {
	files, err := collect.Collect(flags.input, collectOpts)
	if err != nil {
		return batch.Result{}, err
	}

	w, err := flags.openOutput(cmd, cfg)
	if err != nil {
		return batch.Result{}, err
	}

	total := strconv.Itoa(len(files))
	p := startProgress(cmd, "Normalizing "+total+" files")
	res, runErr := batch.Run(cmd.Context(), files, w, batch.Options{
		Parse: parseOpts,
		OnFile: func(i int, f collect.SourceFile) {
			p.Update(fmt.Sprintf("Normalizing %s (%d/%s)", f.Name, i+1, total))
		},
	})
	p.Stop()

	return res, errors.Join(runErr, w.Close())
}
