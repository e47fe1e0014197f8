// Package failure defines the error taxonomy shared by the resnorm pipelines.
//
// Every fatal condition is reported through one of the sentinel errors below,
// wrapped with context by the component that detected it. Callers classify
// errors with errors.Is or Classify; nothing matches on message text.
package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInputNotFound means the input file or directory does not exist or
	// cannot be read as the kind of input the pipeline expects.
	ErrInputNotFound = errors.New("input not found")
	// ErrMalformedRecord means a data line has fewer fields than a
	// positional access requires.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrOutputWrite means the destination could not be opened, written,
	// flushed or closed.
	ErrOutputWrite = errors.New("output write failure")
	// ErrInvalidConfig means the configuration file or flags are unusable.
	ErrInvalidConfig = errors.New("invalid config")
)

// RecordError describes a record that is too short for the fields a
// pipeline reads from it.
type RecordError struct {
	Path string
	Line int
	Got  int
	Need int
}

func (e *RecordError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed record: line %d has %d fields, need at least %d", e.Line, e.Got, e.Need)
	}
	return fmt.Sprintf("malformed record: %s:%d has %d fields, need at least %d", e.Path, e.Line, e.Got, e.Need)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

// Code is a coarse error class used for exit statuses and the run ledger.
type Code string

const (
	CodeOK        Code = "ok"
	CodeInput     Code = "input"
	CodeMalformed Code = "malformed"
	CodeOutput    Code = "output"
	CodeConfig    Code = "config"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
	CodeUnknown   Code = "unknown"
)

// Classify maps err onto a Code. A nil error is CodeOK.
func Classify(err error) Code {
	if err == nil {
		return CodeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, ErrInputNotFound):
		return CodeInput
	case errors.Is(err, ErrMalformedRecord):
		return CodeMalformed
	case errors.Is(err, ErrOutputWrite):
		return CodeOutput
	case errors.Is(err, ErrInvalidConfig):
		return CodeConfig
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// Output wraps err as an ErrOutputWrite for the given operation and target.
// It returns nil when err is nil.
func Output(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", ErrOutputWrite, op, target, err)
}
