package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/ledger"
	"github.com/umilab/resnorm/internal/projectconfig"
	"github.com/umilab/resnorm/internal/sink"
	"github.com/umilab/resnorm/internal/spinner"
	"github.com/umilab/resnorm/internal/wizard"
)

// pipelineFlags are the flags shared by the batch and remap commands.
type pipelineFlags struct {
	input       string
	output      string
	encoding    string
	format      string
	compression string
	summary     bool
	ledgerPath  string
}

func (f *pipelineFlags) register(cmd *cobra.Command, inputUsage string) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", inputUsage)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file, azblob://<container>/<blob>, or - for stdout")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "Input character encoding (default: from config, utf-8)")
	cmd.Flags().StringVar(&f.format, "format", "", "Output format: text, xlsx (default: inferred from the output name)")
	cmd.Flags().StringVar(&f.compression, "compression", "", "Output compression: none, gzip, zstd (default: inferred from the output name)")
	cmd.Flags().BoolVar(&f.summary, "summary", false, "Print a summary table after the run")
	cmd.Flags().StringVar(&f.ledgerPath, "ledger", "", "Record the run in the ledger database at this path")
}

// resolvePaths fills in missing -i/-o interactively when stdin is a
// terminal.
func (f *pipelineFlags) resolvePaths(cmd *cobra.Command, inputTitle string) error {
	req := wizard.PathRequest{InputTitle: inputTitle, Input: f.input, Output: f.output}
	if !req.Missing() {
		return nil
	}
	if !wizard.IsTerminal(cmd.InOrStdin()) {
		return fmt.Errorf("%w: --input and --output are required", failure.ErrInvalidConfig)
	}

	req, err := wizard.RunPathWizard(cmd.InOrStdin(), cmd.ErrOrStderr(), req)
	if err != nil {
		return err
	}
	f.input, f.output = req.Input, req.Output
	return nil
}

func (f *pipelineFlags) sinkOptions(cfg *projectconfig.ProjectConfig) sink.Options {
	opts := sink.Options{
		Format:      sink.Format(cfg.Output.Format),
		Compression: sink.Compression(cfg.Output.Compression),
		Params:      cfg.Output.Params,
	}
	if f.format != "" {
		opts.Format = sink.Format(f.format)
	}
	if f.compression != "" {
		opts.Compression = sink.Compression(f.compression)
	}
	return opts
}

func (f *pipelineFlags) inputEncoding(configured string) string {
	if f.encoding != "" {
		return f.encoding
	}
	return configured
}

// openOutput opens the run's sink. "-" writes plain text to the command's
// stdout; asking for another format or for compression there is an error.
func (f *pipelineFlags) openOutput(cmd *cobra.Command, cfg *projectconfig.ProjectConfig) (sink.LineWriter, error) {
	opts := f.sinkOptions(cfg)
	if f.output != sink.Stdout {
		return sink.Open(cmd.Context(), f.output, opts)
	}

	if opts.Format != "" && opts.Format != sink.FormatText {
		return nil, fmt.Errorf("%w: %s output cannot be written to stdout", failure.ErrInvalidConfig, opts.Format)
	}
	if opts.Compression != "" && opts.Compression != sink.CompressionNone {
		return nil, fmt.Errorf("%w: %s compression cannot be written to stdout", failure.ErrInvalidConfig, opts.Compression)
	}
	return sink.NewWriter(cmd.OutOrStdout()), nil
}

// statusWriter is where progress and summaries go: stderr when the output
// itself is written to stdout.
func (f *pipelineFlags) statusWriter(cmd *cobra.Command) io.Writer {
	if f.output == sink.Stdout {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// progress is a spinner on stderr, or nothing when stderr is not a
// terminal.
type progress struct {
	s *spinner.Spinner
}

func startProgress(cmd *cobra.Command, message string) progress {
	f, ok := cmd.ErrOrStderr().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return progress{}
	}
	return progress{s: spinner.Start(f, message)}
}

func (p progress) Update(message string) {
	if p.s != nil {
		p.s.Update(message)
	}
}

func (p progress) Stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

// ledgerFile returns the ledger database for this run, or "" when runs are
// not recorded.
func (f *pipelineFlags) ledgerFile(cfg *projectconfig.ProjectConfig) string {
	if f.ledgerPath != "" {
		return f.ledgerPath
	}
	if cfg.LedgerEnabled() {
		return cfg.Ledger.Path
	}
	return ""
}

// recordRun stores the outcome of a run in the ledger when one is
// configured. Ledger failures are logged and never change the result.
func recordRun(ctx context.Context, path string, run ledger.Run, runErr error) {
	if path == "" {
		return
	}

	run.Duration = time.Since(run.StartedAt)
	run.Code = string(failure.Classify(runErr))
	run.Status = ledger.StatusOK
	if runErr != nil {
		run.Status = ledger.StatusFailed
		run.Error = runErr.Error()
	}

	// Record interrupted runs too.
	ctx = context.WithoutCancel(ctx)

	l, err := ledger.Open(ctx, path)
	if err != nil {
		slog.Warn("Ledger unavailable", "path", path, "error", err)
		return
	}
	defer l.Close() //nolint:errcheck

	id, err := l.Record(ctx, run)
	if err != nil {
		slog.Warn("Failed to record run", "path", path, "error", err)
		return
	}
	slog.Debug("Recorded run", "id", id, "pipeline", run.Pipeline, "status", run.Status)
}
