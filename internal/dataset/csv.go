// Package dataset reads delimited text files as a lazy sequence of records.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/records"
)

// DefaultEncoding is used when Options.Encoding is empty.
const DefaultEncoding = "utf-8"

const maxLineSize = 16 * 1024 * 1024

// Options controls how lines are split into fields.
type Options struct {
	// Comma is the field delimiter.
	Comma rune
	// Quoted enables quote-aware splitting (excel dialect: lenient quotes,
	// variable field count). When false each line has its trailing
	// whitespace stripped and is split on Comma verbatim.
	Quoted bool
	// Encoding names the input charset (WHATWG/IANA label). A byte order
	// mark in the input always wins.
	Encoding string
	// Marker, when set, classifies records whose first field equals it as
	// records.Marker. When empty every record is records.Data.
	Marker string
}

// BatchOptions returns the options for tab-delimited .res files.
func BatchOptions() Options {
	return Options{Comma: records.BatchDelimiter, Quoted: true, Marker: records.MarkerToken}
}

// RemapOptions returns the options for the comma-delimited remap input.
func RemapOptions() Options {
	return Options{Comma: records.RemapDelimiter}
}

// Scanner yields one records.Record per input line, in order. Empty lines
// at the end of the input are dropped; an empty line followed by more input
// is yielded as a record (no fields in quoted mode, one empty field in plain
// mode) so the pipeline can reject it.
type Scanner struct {
	opts   Options
	path   string
	closer io.Closer

	// checkUTF8 is set when the input is read as raw UTF-8 and every line
	// must be valid.
	checkUTF8 bool

	quoted *csv.Reader
	plain  *bufio.Scanner

	// queue holds records read ahead of the caller: blank lines are only
	// known to be inside the input once a later line turns up.
	queue    []pendingRecord
	lastLine int // last physical line consumed by the reader
	blanks   []int

	rec  records.Record
	line int
	err  error
	done bool
}

type pendingRecord struct {
	fields []string
	line   int
}

// Open opens path and returns a Scanner over its records. The caller must
// Close the scanner.
func Open(path string, opts Options) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w: %w", path, failure.ErrInputNotFound, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("dataset: stat %s: %w: %w", path, failure.ErrInputNotFound, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("dataset: %s is a directory: %w", path, failure.ErrInputNotFound)
	}

	s, err := NewScanner(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.path = path
	s.closer = f
	return s, nil
}

// NewScanner returns a Scanner reading from r.
//
// UTF-8 input is passed through undecoded and checked line by line: an
// invalid byte sequence stops the scan with failure.ErrMalformedRecord.
// Other encodings are decoded with x/text.
func NewScanner(r io.Reader, opts Options) (*Scanner, error) {
	name := opts.Encoding
	if strings.TrimSpace(name) == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", failure.ErrInvalidConfig, opts.Encoding)
	}

	s := &Scanner{opts: opts}

	// A byte order mark overrides the configured encoding either way.
	var fallback transform.Transformer = enc.NewDecoder()
	if canonical, _ := htmlindex.Name(enc); canonical == DefaultEncoding {
		fallback = transform.Nop
		s.checkUTF8 = true
	}
	decoded := transform.NewReader(r, xunicode.BOMOverride(fallback))

	if opts.Quoted {
		cr := csv.NewReader(decoded)
		cr.Comma = opts.Comma
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		s.quoted = cr
	} else {
		sc := bufio.NewScanner(decoded)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		s.plain = sc
	}
	return s, nil
}

// Scan advances to the next record. It returns false at end of input or on
// the first error, which Err reports.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	for len(s.queue) == 0 {
		if s.done {
			return false
		}
		var err error
		if s.quoted != nil {
			err = s.readQuoted()
		} else {
			err = s.readPlain()
		}
		if errors.Is(err, io.EOF) {
			// Blank lines not followed by input are trailing.
			s.done = true
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
	}

	next := s.queue[0]
	s.queue = s.queue[1:]
	s.line = next.line
	if s.opts.Marker == "" {
		s.rec = records.Record{Kind: records.Data, Fields: next.fields}
	} else {
		s.rec = records.Classify(next.fields, s.opts.Marker)
	}
	return true
}

// readQuoted reads one csv record. encoding/csv drops empty lines silently,
// so the gap between the previous record and this one is queued as blank
// records first.
func (s *Scanner) readQuoted() error {
	fields, err := s.quoted.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return fmt.Errorf("dataset: %sline %d: %w: %w", s.location(), perr.Line, failure.ErrMalformedRecord, err)
		}
		return err
	}

	start, _ := s.quoted.FieldPos(0)
	for l := s.lastLine + 1; l < start; l++ {
		s.queue = append(s.queue, pendingRecord{line: l})
	}

	for i, f := range fields {
		if s.checkUTF8 && !utf8.ValidString(f) {
			line, _ := s.quoted.FieldPos(i)
			return s.invalidUTF8(line)
		}
	}
	last := len(fields) - 1
	end, _ := s.quoted.FieldPos(last)
	s.lastLine = end + strings.Count(fields[last], "\n")

	s.queue = append(s.queue, pendingRecord{fields: fields, line: start})
	return nil
}

// readPlain reads one physical line. Whitespace-only lines are held back
// until a non-blank line shows they are not trailing.
func (s *Scanner) readPlain() error {
	for s.plain.Scan() {
		s.lastLine++
		raw := s.plain.Text()
		if s.checkUTF8 && !utf8.ValidString(raw) {
			return s.invalidUTF8(s.lastLine)
		}
		text := strings.TrimRightFunc(raw, unicode.IsSpace)
		if text == "" {
			s.blanks = append(s.blanks, s.lastLine)
			continue
		}
		for _, l := range s.blanks {
			s.queue = append(s.queue, pendingRecord{fields: []string{""}, line: l})
		}
		s.blanks = s.blanks[:0]
		s.queue = append(s.queue, pendingRecord{fields: strings.Split(text, string(s.opts.Comma)), line: s.lastLine})
		return nil
	}
	if err := s.plain.Err(); err != nil {
		return fmt.Errorf("dataset: %sline %d: %w", s.location(), s.lastLine+1, err)
	}
	return io.EOF
}

func (s *Scanner) invalidUTF8(line int) error {
	return fmt.Errorf("dataset: %sline %d: %w: invalid UTF-8", s.location(), line, failure.ErrMalformedRecord)
}

func (s *Scanner) location() string {
	if s.path == "" {
		return ""
	}
	return s.path + ": "
}

// Record returns the record produced by the last successful Scan.
func (s *Scanner) Record() records.Record {
	return s.rec
}

// Line returns the 1-based input line number of the current record.
func (s *Scanner) Line() int {
	return s.line
}

// Err returns the first error encountered, or nil at a clean end of input.
func (s *Scanner) Err() error {
	return s.err
}

// Close releases the underlying file, if the scanner owns one.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
