package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placesplit/internal/value"
)

func TestBuiltinScripts(t *testing.T) {
	cat, err := Builtin()
	require.NoError(t, err)

	tests := []struct {
		class string
		run   RunContext
	}{
		{"Script", RunServer},
		{"LocalScript", RunClient},
		{"ModuleScript", RunModule},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			cls, ok := cat.Lookup(tt.class)
			require.True(t, ok)
			assert.Equal(t, KindScript, cls.Kind)
			assert.Equal(t, tt.run, cls.RunContext)
			assert.Equal(t, "Source", cls.SourceProperty)
		})
	}
}

func TestBuiltinDefaults(t *testing.T) {
	cat, err := Builtin()
	require.NoError(t, err)

	part, ok := cat.Lookup("Part")
	require.True(t, ok)
	assert.Equal(t, KindInstance, part.Kind)

	size, ok := part.Default("Size")
	require.True(t, ok)
	assert.Equal(t, value.Vector3{X: 4, Y: 1, Z: 2}, size)

	anchored, ok := part.Default("Anchored")
	require.True(t, ok)
	assert.Equal(t, value.Bool(false), anchored)

	shape, ok := part.Default("Shape")
	require.True(t, ok)
	assert.Equal(t, value.Enum(1), shape)

	cf, ok := part.Default("CFrame")
	require.True(t, ok)
	assert.Equal(t, value.Vector3{X: 1}, cf.(value.CFrame).Orientation[0])

	obj, ok := cat.Lookup("ObjectValue")
	require.True(t, ok)
	ref, ok := obj.Default("Value")
	require.True(t, ok)
	assert.True(t, ref.(value.Ref).IsNil())
}

func TestBuiltinContainers(t *testing.T) {
	cat, err := Builtin()
	require.NoError(t, err)

	for _, name := range []string{"Folder", "Workspace", "ReplicatedStorage", "DataModel"} {
		cls, ok := cat.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, KindContainer, cls.Kind, name)
	}
	_, ok := cat.Lookup("SomethingUnheardOf")
	assert.False(t, ok)
}

func TestBuiltinIsCached(t *testing.T) {
	a, err := Builtin()
	require.NoError(t, err)
	b, err := Builtin()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestClassesSorted(t *testing.T) {
	cat, err := Builtin()
	require.NoError(t, err)

	classes := cat.Classes()
	require.Len(t, classes, cat.Len())
	for i := 1; i < len(classes); i++ {
		assert.Less(t, classes[i-1].Name, classes[i].Name)
	}
}

func TestCompileExtension(t *testing.T) {
	ext := Source{Name: "ext.cue", Data: []byte(`
classes: {
	Tool: {
		kind: "instance"
		defaults: CanBeDropped: {type: "bool", value: true}
	}
	Part: defaults: Elasticity: {type: "float32", value: 0.5}
}
`)}
	cat, err := Compile(ext)
	require.NoError(t, err)

	tool, ok := cat.Lookup("Tool")
	require.True(t, ok)
	assert.Equal(t, value.Bool(true), tool.Defaults["CanBeDropped"])

	part, ok := cat.Lookup("Part")
	require.True(t, ok)
	assert.Equal(t, value.Float32(0.5), part.Defaults["Elasticity"])
	assert.Contains(t, part.Defaults, "Anchored")
}

func TestCompileRejectsConflict(t *testing.T) {
	ext := Source{Name: "bad.cue", Data: []byte(`classes: Script: runContext: "client"`)}
	_, err := Compile(ext)
	require.Error(t, err)

	var catErr *Error
	assert.ErrorAs(t, err, &catErr)
}

func TestCompileRejectsUnknownKind(t *testing.T) {
	ext := Source{Name: "bad.cue", Data: []byte(`classes: Gadget: kind: "widget"`)}
	_, err := Compile(ext)
	assert.Error(t, err)
}

func TestCompileRejectsScriptWithoutRunContext(t *testing.T) {
	ext := Source{Name: "bad.cue", Data: []byte(`classes: CoreScript: kind: "script"`)}
	_, err := Compile(ext)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runContext")
}

func TestCompileRejectsUnknownDefaultType(t *testing.T) {
	ext := Source{Name: "bad.cue", Data: []byte(`
classes: TextLabel: {
	kind: "instance"
	defaults: FontFace: {type: "font", value: "Arial"}
}
`)}
	_, err := Compile(ext)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FontFace")
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.cue")
	require.NoError(t, os.WriteFile(path, []byte(`classes: Accessory: kind: "instance"`), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)
	_, ok := cat.Lookup("Accessory")
	assert.True(t, ok)

	_, err = Load(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}
