package sink

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/umilab/resnorm/internal/failure"
)

const bufSize = 64 * 1024

// textWriter writes newline-terminated lines, optionally compressed.
type textWriter struct {
	name   string
	bw     *bufio.Writer
	comp   io.WriteCloser
	closer io.Closer
	err    error
	closed bool
}

// NewWriter returns a text LineWriter over w. Closing it flushes but does
// not close w.
func NewWriter(w io.Writer) LineWriter {
	return &textWriter{name: "stream", bw: bufio.NewWriterSize(w, bufSize)}
}

func openFile(path string, opts Options, p Params) (LineWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, failure.Output("open", path, err)
	}
	w, err := newFileWriter(f, path, opts, p)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// newFileWriter wraps an open file in the writer for opts.Format. The
// returned writer owns f.
func newFileWriter(f *os.File, name string, opts Options, p Params) (LineWriter, error) {
	if opts.Format == FormatXLSX {
		return newXLSXWriter(f, name, p)
	}
	return newTextWriter(f, name, opts.Compression, p.Level)
}

func newTextWriter(f *os.File, name string, c Compression, level int) (*textWriter, error) {
	w := &textWriter{name: name, closer: f}
	var dst io.Writer = f

	switch c {
	case CompressionGzip:
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(f, level)
		if err != nil {
			return nil, failure.Output("open", name, err)
		}
		w.comp, dst = gw, gw
	case CompressionZstd:
		enc := zstd.SpeedDefault
		if level != 0 {
			enc = zstd.EncoderLevelFromZstd(level)
		}
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(enc))
		if err != nil {
			return nil, failure.Output("open", name, err)
		}
		w.comp, dst = zw, zw
	}

	w.bw = bufio.NewWriterSize(dst, bufSize)
	return w, nil
}

func (w *textWriter) WriteLine(line string) error {
	if w.err != nil {
		return w.err
	}
	if _, err := w.bw.WriteString(line); err != nil {
		w.err = failure.Output("write", w.name, err)
		return w.err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		w.err = failure.Output("write", w.name, err)
		return w.err
	}
	return nil
}

func (w *textWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.bw.Flush(); err != nil {
		errs = append(errs, failure.Output("flush", w.name, err))
	}
	if w.comp != nil {
		if err := w.comp.Close(); err != nil {
			errs = append(errs, failure.Output("close", w.name, err))
		}
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			errs = append(errs, failure.Output("close", w.name, err))
		}
	}
	return errors.Join(errs...)
}
