// Package remap implements the single-file column remap: each data row of a
// comma-delimited file becomes "key|qualifier,value" built from fixed
// columns. The first row is a header and is dropped.
package remap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/umilab/resnorm/internal/dataset"
	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/records"
	"github.com/umilab/resnorm/internal/sink"
)

// Result summarises a remap run.
type Result struct {
	// Rows is the number of data rows read, header excluded.
	Rows int
	// Lines is the number of output lines written.
	Lines int
}

// Run remaps the file at path and streams the output lines to w. The first
// line is the header and is dropped even when it is blank. A row with
// fewer than records.RemapMinFields fields, a blank row between the header
// and the end of the file included, aborts the run with a
// *failure.RecordError; lines already written stay written. Run does not
// close w.
func Run(ctx context.Context, path string, w sink.LineWriter, opts dataset.Options) (Result, error) {
	var res Result
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("remap: %w", err)
	}

	s, err := dataset.Open(path, opts)
	if err != nil {
		return res, fmt.Errorf("remap: %w", err)
	}
	defer s.Close() //nolint:errcheck

	header := true
	for s.Scan() {
		if header {
			header = false
			continue
		}
		res.Rows++

		line, err := records.Remap(s.Record().Fields)
		if err != nil {
			var recErr *failure.RecordError
			if errors.As(err, &recErr) {
				recErr.Path = path
				recErr.Line = s.Line()
			}
			return res, fmt.Errorf("remap: %w", err)
		}
		if err := w.WriteLine(line); err != nil {
			return res, err
		}
		res.Lines++
	}
	if err := s.Err(); err != nil {
		return res, fmt.Errorf("remap: %w", err)
	}

	slog.Debug("Remap complete", "input", path, "rows", res.Rows, "lines", res.Lines)
	return res, nil
}
