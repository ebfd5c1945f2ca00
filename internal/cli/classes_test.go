package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassesText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewClassesCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "LocalScript")
	assert.Contains(t, out, ".client.lua")
	assert.Contains(t, out, ".server.lua")
	assert.Contains(t, out, "classes\n")
}

func TestClassesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewClassesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var resp jsonResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	var infos []ClassInfo
	require.NoError(t, json.Unmarshal(resp.Data, &infos))

	byName := map[string]ClassInfo{}
	for _, c := range infos {
		byName[c.Name] = c
	}
	assert.Equal(t, ClassInfo{
		Name:       "Script",
		Kind:       "script",
		RunContext: "server",
		Extension:  ".server.lua",
		Source:     "Source",
		Defaults:   1,
	}, byName["Script"])
	assert.Equal(t, "container", byName["Folder"].Kind)
	assert.Empty(t, byName["Folder"].Extension)
}

func TestClassesWithExtraCatalog(t *testing.T) {
	dir := t.TempDir()
	extra := filepath.Join(dir, "extra.cue")
	require.NoError(t, os.WriteFile(extra, []byte(`classes: Gizmo: kind: "container"`+"\n"), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewClassesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--catalog", extra})
	require.NoError(t, cmd.Execute())

	var resp jsonResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	var infos []ClassInfo
	require.NoError(t, json.Unmarshal(resp.Data, &infos))
	var found bool
	for _, c := range infos {
		if c.Name == "Gizmo" {
			found = true
			assert.Equal(t, "container", c.Kind)
		}
	}
	assert.True(t, found)
}

func TestClassesBadCatalog(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(bad, []byte(`classes: Script: kind: "container"`+"\n"), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewClassesCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--catalog", bad})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E004]")
}
