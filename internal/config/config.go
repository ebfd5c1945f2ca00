// Package config loads the placesplit YAML configuration file.
//
// Every key is optional:
//
//	project_name: Game        # manifest name; defaults to the input file stem
//	max_name_length: 100      # longest path component, in characters
//	placeholder: "_"          # replacement for illegal characters
//	workers: 8                # concurrent file writes
//	catalog:                  # extra CUE class catalogs, relative to this file
//	  - classes/custom.cue
//	journal: runs.db          # SQLite run journal, relative to this file
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/roach88/placesplit/internal/naming"
	"github.com/roach88/placesplit/internal/writer"
)

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "placesplit.yaml"

// Config is the effective configuration.
type Config struct {
	ProjectName   string   `yaml:"project_name,omitempty"`
	MaxNameLength int      `yaml:"max_name_length,omitempty"`
	Placeholder   string   `yaml:"placeholder,omitempty"`
	Workers       int      `yaml:"workers,omitempty"`
	Catalog       []string `yaml:"catalog,omitempty"`
	Journal       string   `yaml:"journal,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		MaxNameLength: naming.DefaultMaxLength,
		Placeholder:   naming.DefaultPlaceholder,
		Workers:       writer.DefaultWorkers,
	}
}

// Naming returns the name resolver options.
func (c *Config) Naming() naming.Options {
	return naming.Options{MaxLength: c.MaxNameLength, Placeholder: c.Placeholder}
}

// Load reads path from fsys. Unknown keys are rejected. Relative catalog
// and journal paths are resolved against the file's directory. Unset keys
// keep their defaults.
func Load(fsys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, p := range cfg.Catalog {
		cfg.Catalog[i] = resolve(base, p)
	}
	if cfg.Journal != "" {
		cfg.Journal = resolve(base, cfg.Journal)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields Default.
func LoadOptional(fsys afero.Fs, path string) (*Config, error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if !exists {
		return Default(), nil
	}
	return Load(fsys, path)
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if err := c.Naming().Validate(); err != nil {
		return err
	}
	for i, p := range c.Catalog {
		if p == "" {
			return fmt.Errorf("catalog[%d]: empty path", i)
		}
	}
	return nil
}
