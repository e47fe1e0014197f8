// Package collect enumerates the input files of the batch pipeline.
package collect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/records"
)

// SourceFile is one collected input file.
type SourceFile struct {
	// Name is the final path segment, as written to the output.
	Name string
	Path string
}

// Options controls which files are collected and in which order.
type Options struct {
	// Extension is matched against the end of each file name, including
	// the leading dot.
	Extension string
	// Sorted orders files by name. When false the directory's own
	// enumeration order is kept.
	Sorted bool
}

// DefaultOptions collects *.res files in name order.
func DefaultOptions() Options {
	return Options{Extension: records.ResExtension, Sorted: true}
}

// Collect returns the regular files in dir whose names end with
// opts.Extension. Subdirectories are not descended into and hidden files are
// skipped. A directory without matches yields an empty slice.
func Collect(dir string, opts Options) ([]SourceFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("collect: %w: %w", failure.ErrInputNotFound, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collect: %s is not a directory: %w", dir, failure.ErrInputNotFound)
	}

	d, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("collect: %w: %w", failure.ErrInputNotFound, err)
	}
	defer d.Close() //nolint:errcheck

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("collect: reading %s: %w: %w", dir, failure.ErrInputNotFound, err)
	}
	if opts.Sorted {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	}

	files := make([]SourceFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, opts.Extension) {
			continue
		}
		p := filepath.Join(dir, name)
		if !isRegular(p, e) {
			continue
		}
		files = append(files, SourceFile{Name: name, Path: p})
	}
	return files, nil
}

// isRegular reports whether e is a regular file, following symlinks.
func isRegular(p string, e os.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	t, err := os.Stat(p)
	return err == nil && t.Mode().IsRegular()
}
