// Package sink writes pipeline output lines to their destination.
//
// Lines are streamed through a buffered writer as they are produced; nothing
// is accumulated in memory beyond the buffer. Every failure to open, write,
// flush or close the destination wraps failure.ErrOutputWrite.
package sink

//go:generate go tool mockgen -source=sink.go -destination=sinkmock/mock_sink.go -package=sinkmock

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/umilab/resnorm/internal/failure"
)

// LineWriter receives output lines in order. Close flushes and releases the
// destination; the output is complete only after Close returns nil.
type LineWriter interface {
	WriteLine(line string) error
	Close() error
}

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
)

// Compression selects the stream compression applied to text output.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Stdout is the target name that selects standard output.
const Stdout = "-"

// Options configures a sink. Zero values are inferred from the target name.
type Options struct {
	Format      Format
	Compression Compression
	// Params carries format and destination specific settings, decoded
	// into Params.
	Params map[string]any
}

// Params are the recognised keys of Options.Params.
type Params struct {
	// Sheet names the worksheet of xlsx output.
	Sheet string `mapstructure:"sheet"`
	// Level is the gzip or zstd compression level; 0 selects the default.
	Level int `mapstructure:"level"`
	// AccountURL is the blob service URL for azblob:// targets.
	AccountURL string `mapstructure:"account_url"`
}

// DecodeParams decodes raw into Params, rejecting unknown keys.
func DecodeParams(raw map[string]any) (Params, error) {
	var p Params
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("%w: output params: %w", failure.ErrInvalidConfig, err)
	}
	return p, nil
}

// Open opens target for writing. Local targets are created or truncated;
// azblob://container/blob targets are staged locally and uploaded on Close.
func Open(ctx context.Context, target string, opts Options) (LineWriter, error) {
	p, err := DecodeParams(opts.Params)
	if err != nil {
		return nil, err
	}
	opts, err = resolve(target, opts)
	if err != nil {
		return nil, err
	}
	if err := checkLevel(opts.Compression, p.Level); err != nil {
		return nil, err
	}
	if IsBlob(target) {
		return openBlob(ctx, target, opts, p)
	}
	return openFile(target, opts, p)
}

// resolve fills in the format and compression implied by target and checks
// that the combination is supported.
func resolve(target string, opts Options) (Options, error) {
	name := target
	if IsBlob(target) {
		name = strings.TrimPrefix(target, BlobScheme)
	}
	if opts.Compression == "" {
		opts.Compression = InferCompression(name)
	}
	if opts.Format == "" {
		opts.Format = InferFormat(name)
	}

	switch opts.Format {
	case FormatText, FormatXLSX:
	default:
		return opts, fmt.Errorf("%w: unknown output format %q", failure.ErrInvalidConfig, opts.Format)
	}
	switch opts.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return opts, fmt.Errorf("%w: unknown compression %q", failure.ErrInvalidConfig, opts.Compression)
	}
	if opts.Format == FormatXLSX && opts.Compression != CompressionNone {
		return opts, fmt.Errorf("%w: xlsx output cannot be compressed", failure.ErrInvalidConfig)
	}
	return opts, nil
}

// Accepted compression levels; 0 always selects the codec default.
const (
	MinGzipLevel = gzip.HuffmanOnly
	MaxGzipLevel = gzip.BestCompression
	MaxZstdLevel = 22
)

// checkLevel rejects a params level the codec cannot use.
func checkLevel(c Compression, level int) error {
	if level == 0 {
		return nil
	}
	switch c {
	case CompressionGzip:
		if level < MinGzipLevel || level > MaxGzipLevel {
			return fmt.Errorf("%w: gzip level %d outside %d..%d", failure.ErrInvalidConfig, level, MinGzipLevel, MaxGzipLevel)
		}
	case CompressionZstd:
		if level < 1 || level > MaxZstdLevel {
			return fmt.Errorf("%w: zstd level %d outside 1..%d", failure.ErrInvalidConfig, level, MaxZstdLevel)
		}
	}
	return nil
}

// InferCompression returns the compression implied by name's extension.
func InferCompression(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// InferFormat returns the format implied by name's extension, looking past
// a compression suffix.
func InferFormat(name string) Format {
	if InferCompression(name) != CompressionNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatText
}
