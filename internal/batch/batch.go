// Package batch implements the batch record normalizer: every collected .res
// file is emitted as its bare name followed by one normalized line per record.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/umilab/resnorm/internal/collect"
	"github.com/umilab/resnorm/internal/dataset"
	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/records"
	"github.com/umilab/resnorm/internal/sink"
)

// FileStat counts the records normalized from one file.
type FileStat struct {
	Name    string
	Markers int
	Data    int
}

// Records returns the number of records read from the file.
func (s FileStat) Records() int {
	return s.Markers + s.Data
}

// Result summarises a batch run.
type Result struct {
	// Files is the number of files fully processed.
	Files int
	// Lines is the number of output lines written, filename lines included.
	Lines   int
	PerFile []FileStat
}

// Options configures Run.
type Options struct {
	// Parse controls how each file is split into records.
	Parse dataset.Options
	// OnFile, when set, is called before each file is read.
	OnFile func(index int, f collect.SourceFile)
}

// Run normalizes files in order and writes the output lines to w. Files are
// read one at a time and their lines are streamed to w as they are
// produced. The first error aborts the run; lines already written stay
// written. Run does not close w.
func Run(ctx context.Context, files []collect.SourceFile, w sink.LineWriter, opts Options) (Result, error) {
	start := time.Now()
	res := Result{PerFile: make([]FileStat, 0, len(files))}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("batch: %w", err)
		}
		if opts.OnFile != nil {
			opts.OnFile(i, f)
		}

		stat, written, err := normalizeFile(f, w, opts.Parse)
		res.Lines += written
		if err != nil {
			return res, err
		}
		res.PerFile = append(res.PerFile, stat)
		res.Files++
		slog.Debug("Normalized file", "file", f.Name, "markers", stat.Markers, "data", stat.Data)
	}

	slog.Debug("Batch complete", "files", res.Files, "lines", res.Lines, "elapsed", time.Since(start))
	return res, nil
}

func normalizeFile(f collect.SourceFile, w sink.LineWriter, opts dataset.Options) (FileStat, int, error) {
	stat := FileStat{Name: f.Name}
	s, err := dataset.Open(f.Path, opts)
	if err != nil {
		return stat, 0, fmt.Errorf("batch: %w", err)
	}
	defer s.Close() //nolint:errcheck

	if err := w.WriteLine(f.Name); err != nil {
		return stat, 0, err
	}
	written := 1

	for s.Scan() {
		rec := s.Record()
		if err := rec.Check(); err != nil {
			var recErr *failure.RecordError
			if errors.As(err, &recErr) {
				recErr.Path = f.Path
				recErr.Line = s.Line()
			}
			return stat, written, fmt.Errorf("batch: %w", err)
		}
		if err := w.WriteLine(rec.Format()); err != nil {
			return stat, written, err
		}
		written++
		if rec.Kind == records.Marker {
			stat.Markers++
		} else {
			stat.Data++
		}
	}
	if err := s.Err(); err != nil {
		return stat, written, fmt.Errorf("batch: %s: %w", f.Name, err)
	}
	return stat, written, nil
}
