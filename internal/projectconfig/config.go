// Package projectconfig provides the ProjectConfig struct and loader for
// .resnorm.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/umilab/resnorm/internal/failure"
	"github.com/umilab/resnorm/internal/records"
	"github.com/umilab/resnorm/internal/validation"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".resnorm.yaml"

// Default values for project configuration, applied by New().
const (
	DefaultExtension = records.ResExtension
	DefaultMarker    = records.MarkerToken
	DefaultEncoding  = "utf-8"

	DefaultLedgerPath = ".resnorm/ledger.db"
)

// EnvLedger overrides ledger.path and enables the ledger.
const EnvLedger = "RESNORM_LEDGER"

// BatchConfig holds settings of the batch pipeline.
type BatchConfig struct {
	Extension string `yaml:"extension,omitempty"`
	Marker    string `yaml:"marker,omitempty"`
	Sort      *bool  `yaml:"sort,omitempty"`
	Encoding  string `yaml:"encoding,omitempty"`
}

// RemapConfig holds settings of the remap pipeline.
type RemapConfig struct {
	Encoding string `yaml:"encoding,omitempty"`
}

// OutputConfig holds sink settings shared by both pipelines. Empty format
// and compression are inferred from the output name.
type OutputConfig struct {
	Format      string         `yaml:"format,omitempty"`
	Compression string         `yaml:"compression,omitempty"`
	Params      map[string]any `yaml:"params,omitempty"`
}

// LedgerConfig holds run ledger settings.
type LedgerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .resnorm.yaml.
type ProjectConfig struct {
	Batch  BatchConfig  `yaml:"batch,omitempty"`
	Remap  RemapConfig  `yaml:"remap,omitempty"`
	Output OutputConfig `yaml:"output,omitempty"`
	Ledger LedgerConfig `yaml:"ledger,omitempty"`

	// Source is the file the configuration was read from, empty for
	// defaults.
	Source string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Batch: BatchConfig{
			Extension: DefaultExtension,
			Marker:    DefaultMarker,
			Sort:      boolPtr(true),
			Encoding:  DefaultEncoding,
		},
		Remap: RemapConfig{
			Encoding: DefaultEncoding,
		},
		Ledger: LedgerConfig{
			Enabled: boolPtr(false),
			Path:    DefaultLedgerPath,
		},
	}
}

// LedgerEnabled reports whether runs should be recorded.
func (c *ProjectConfig) LedgerEnabled() bool {
	return c.Ledger.Enabled != nil && *c.Ledger.Enabled
}

// SortFiles reports whether batch input files are processed in name order.
func (c *ProjectConfig) SortFiles() bool {
	return c.Batch.Sort == nil || *c.Batch.Sort
}

// Load finds .resnorm.yaml by walking up from startDir (max 10 levels),
// validates and unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}
	return parse(path, data)
}

// LoadFile reads the configuration at path. Unlike Load, a missing file is
// an error.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", failure.ErrInvalidConfig, path, err)
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*ProjectConfig, error) {
	if errs := validation.ValidateConfigBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s:\n  %s", failure.ErrInvalidConfig, path, strings.Join(errs, "\n  "))
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", failure.ErrInvalidConfig, path, err)
	}

	cfg := New()
	mergeConfig(cfg, &fileCfg)
	cfg.Source = path
	if cfg.Ledger.Path != "" && !filepath.IsAbs(cfg.Ledger.Path) {
		cfg.Ledger.Path = filepath.Join(filepath.Dir(path), cfg.Ledger.Path)
	}
	return cfg, nil
}

// ApplyEnv overlays environment settings read through lookup.
func (c *ProjectConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLedger); ok && strings.TrimSpace(v) != "" {
		c.Ledger.Path = strings.TrimSpace(v)
		c.Ledger.Enabled = boolPtr(true)
	}
}

// findConfigFile walks up from dir looking for .resnorm.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates real
// I/O errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) (string, []byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Batch
	if src.Batch.Extension != "" {
		dst.Batch.Extension = src.Batch.Extension
	}
	if src.Batch.Marker != "" {
		dst.Batch.Marker = src.Batch.Marker
	}
	if src.Batch.Sort != nil {
		dst.Batch.Sort = src.Batch.Sort
	}
	if src.Batch.Encoding != "" {
		dst.Batch.Encoding = src.Batch.Encoding
	}

	// Remap
	if src.Remap.Encoding != "" {
		dst.Remap.Encoding = src.Remap.Encoding
	}

	// Output
	if src.Output.Format != "" {
		dst.Output.Format = src.Output.Format
	}
	if src.Output.Compression != "" {
		dst.Output.Compression = src.Output.Compression
	}
	if src.Output.Params != nil {
		dst.Output.Params = src.Output.Params
	}

	// Ledger
	if src.Ledger.Enabled != nil {
		dst.Ledger.Enabled = src.Ledger.Enabled
	}
	if src.Ledger.Path != "" {
		dst.Ledger.Path = src.Ledger.Path
	}
}

func boolPtr(b bool) *bool {
	return &b
}
