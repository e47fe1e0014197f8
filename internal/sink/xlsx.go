package sink

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/records"
)

const defaultSheet = "Sheet1"

// xlsxWriter streams lines into a worksheet, one row per line and one cell
// per comma-separated field.
type xlsxWriter struct {
	name   string
	f      *os.File
	book   *excelize.File
	stream *excelize.StreamWriter
	row    int
	closed bool
}

func newXLSXWriter(f *os.File, name string, p Params) (*xlsxWriter, error) {
	book := excelize.NewFile()
	sheet := defaultSheet
	if p.Sheet != "" && p.Sheet != defaultSheet {
		if err := book.SetSheetName(defaultSheet, p.Sheet); err != nil {
			_ = book.Close()
			return nil, failure.Output("open", name, err)
		}
		sheet = p.Sheet
	}
	sw, err := book.NewStreamWriter(sheet)
	if err != nil {
		_ = book.Close()
		return nil, failure.Output("open", name, err)
	}
	return &xlsxWriter{name: name, f: f, book: book, stream: sw}, nil
}

func (w *xlsxWriter) WriteLine(line string) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return failure.Output("write", w.name, err)
	}
	fields := strings.Split(line, records.OutputSeparator)
	values := make([]any, len(fields))
	for i, v := range fields {
		values[i] = v
	}
	if err := w.stream.SetRow(cell, values); err != nil {
		return failure.Output("write", w.name, err)
	}
	return nil
}

func (w *xlsxWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.stream.Flush(); err != nil {
		errs = append(errs, failure.Output("flush", w.name, err))
	} else {
		bw := bufio.NewWriterSize(w.f, bufSize)
		if _, err := w.book.WriteTo(bw); err != nil {
			errs = append(errs, failure.Output("write", w.name, err))
		} else if err := bw.Flush(); err != nil {
			errs = append(errs, failure.Output("flush", w.name, err))
		}
	}
	if err := w.book.Close(); err != nil {
		errs = append(errs, failure.Output("close", w.name, err))
	}
	if err := w.f.Close(); err != nil {
		errs = append(errs, failure.Output("close", w.name, err))
	}
	return errors.Join(errs...)
}
