package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeConfig(t, fsys, "/proj/placesplit.yaml", `
project_name: Game
max_name_length: 64
placeholder: "-"
workers: 2
catalog:
  - classes/extra.cue
  - /abs/more.cue
journal: runs.db
`)

	cfg, err := Load(fsys, "/proj/placesplit.yaml")
	require.NoError(t, err)
	assert.Equal(t, &Config{
		ProjectName:   "Game",
		MaxNameLength: 64,
		Placeholder:   "-",
		Workers:       2,
		Catalog:       []string{filepath.Join("/proj", "classes", "extra.cue"), "/abs/more.cue"},
		Journal:       filepath.Join("/proj", "runs.db"),
	}, cfg)

	opts := cfg.Naming()
	assert.Equal(t, 64, opts.MaxLength)
	assert.Equal(t, "-", opts.Placeholder)
}

func TestLoadKeepsDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeConfig(t, fsys, "/c.yaml", "project_name: X\n")

	cfg, err := Load(fsys, "/c.yaml")
	require.NoError(t, err)
	want := Default()
	want.ProjectName = "X"
	assert.Equal(t, want, cfg)
}

func TestLoadEmptyFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeConfig(t, fsys, "/c.yaml", "")

	cfg, err := Load(fsys, "/c.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "workerz: 3\n", "field workerz not found"},
		{"bad type", "workers: many\n", "parse config"},
		{"zero workers", "workers: 0\n", "workers must be at least 1"},
		{"long placeholder", "placeholder: ab\n", "single character"},
		{"illegal placeholder", "placeholder: \"/\"\n", "not allowed"},
		{"short names", "max_name_length: 4\n", "too short"},
		{"empty catalog path", "catalog: [\"\"]\n", "catalog[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeConfig(t, fsys, "/c.yaml", tt.content)
			_, err := Load(fsys, "/c.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg, err := LoadOptional(fsys, DefaultFile)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	writeConfig(t, fsys, DefaultFile, "workers: 3\n")
	cfg, err = LoadOptional(fsys, DefaultFile)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
