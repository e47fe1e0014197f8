// Package records holds the record model shared by the batch and remap
// pipelines, and the field-level normalization rules applied to it.
package records

import (
	"strings"

	"github.com/umilab/resnorm/internal/failure"
)

// Delimiters and tokens of the two input formats and of the output.
const (
	// MarkerToken marks a template line in a .res file when it is the first
	// tab-delimited field.
	MarkerToken = "#Template"

	BatchDelimiter  = '\t'
	RemapDelimiter  = ','
	OutputSeparator = ","

	// ResExtension is the file extension collected by the batch pipeline.
	ResExtension = ".res"
)

// Positions of the fields read by Remap (0-indexed).
const (
	RemapValueField     = 4
	RemapKeyField       = 5
	RemapQualifierField = 6

	// RemapMinFields is the shortest record Remap accepts.
	RemapMinFields = RemapQualifierField + 1

	// BatchMinFields is the shortest record Format can normalize: the
	// label field must exist.
	BatchMinFields = 1
)

// Kind distinguishes marker lines from data lines.
type Kind int

const (
	Data Kind = iota
	Marker
)

// Record is one input line split into fields.
type Record struct {
	Kind   Kind
	Fields []string
}

// Classify builds a Record from fields, marking it as a Marker when its
// first field equals marker.
func Classify(fields []string, marker string) Record {
	if len(fields) > 0 && fields[0] == marker {
		return Record{Kind: Marker, Fields: fields}
	}
	return Record{Kind: Data, Fields: fields}
}

// Check reports a record too short to be normalized as a
// *failure.RecordError.
func (r Record) Check() error {
	if len(r.Fields) < BatchMinFields {
		return &failure.RecordError{Got: len(r.Fields), Need: BatchMinFields}
	}
	return nil
}

// Format renders the record as one output line.
//
// Data records get their first field normalized with NormalizeLabel; marker
// records are joined verbatim. Both then have every space removed.
func (r Record) Format() string {
	if r.Kind == Marker || len(r.Fields) == 0 {
		return StripSpaces(strings.Join(r.Fields, OutputSeparator))
	}
	out := make([]string, len(r.Fields))
	copy(out, r.Fields)
	out[0] = NormalizeLabel(out[0])
	return StripSpaces(strings.Join(out, OutputSeparator))
}

// NormalizeLabel drops the leading positional token of a space separated
// label and joins the remaining tokens with underscores.
//
// A label without spaces is a single positional token and normalizes to "".
func NormalizeLabel(label string) string {
	tokens := strings.Split(label, " ")
	return strings.Join(tokens[1:], "_")
}

// StripSpaces removes every space character from s.
func StripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// Remap renders a remap data record as "key|qualifier,value".
func Remap(fields []string) (string, error) {
	if len(fields) < RemapMinFields {
		return "", &failure.RecordError{Got: len(fields), Need: RemapMinFields}
	}
	return fields[RemapKeyField] + "|" + fields[RemapQualifierField] + OutputSeparator + fields[RemapValueField], nil
}
