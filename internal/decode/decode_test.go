package decode

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placesplit/internal/diag"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/projection"
	"github.com/roach88/placesplit/internal/value"
)

func TestDecodeYAMLDocument(t *testing.T) {
	reg := NewRegistry()
	root, err := reg.DecodeFile(afero.NewOsFs(), "testdata/place.yaml")
	require.NoError(t, err)

	assert.Equal(t, "DataModel", root.Class)
	assert.Equal(t, "Place", root.Name)
	assert.Equal(t, 7, instance.Count(root))

	idx := instance.Index(root)
	tree := idx["tree"]
	require.NotNil(t, tree)
	assert.Equal(t, value.Ref{ID: "trunk"}, tree.Properties["PrimaryPart"])

	trunk := idx["trunk"]
	require.NotNil(t, trunk)
	assert.Equal(t, value.Vector3{X: 1, Y: 8, Z: 1}, trunk.Properties["Size"])
	assert.Equal(t, value.Color3{R: 0.5, G: 0.25, B: 0}, trunk.Properties["Color"])

	main := root.Children[1].Children[0]
	assert.Equal(t, value.String("print(\"hello\")\n"), main.Properties["Source"])
	assert.Equal(t, value.Int32(5), main.Attributes["Priority"])
	assert.Equal(t, []string{"Boot"}, main.Tags)

	odd := root.Children[1].Children[1]
	gadget, ok := odd.Properties["Gadget"].(value.Unsupported)
	require.True(t, ok)
	assert.Equal(t, "quaternion", gadget.TypeName)
}

func TestDecodeJSONDocument(t *testing.T) {
	root, err := NewRegistry().DecodeFile(afero.NewOsFs(), "testdata/place.json")
	require.NoError(t, err)

	stuff := root.Children[0]
	assert.Equal(t, value.Int64(9007199254740993), stuff.Attributes["Big"])
	assert.Equal(t, value.Float64(0.1), stuff.Attributes["Ratio"])
}

func TestDecodeDocumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "", "empty tree document"},
		{"no class", "name: X\n", "root: class is required"},
		{"unknown key", "class: Folder\nkids: []\n", "field kids not found"},
		{"nested no class", "class: Folder\nchildren:\n  - name: A\n", "root.children[0]: class is required"},
		{"duplicate id", "class: Folder\nid: a\nchildren:\n  - {class: Folder, id: a}\n", `id "a" already used by root`},
		{"name property", "class: Folder\nproperties:\n  Name: {type: string, value: X}\n", "use the name key"},
		{"bad value", "class: Folder\nproperties:\n  Anchored: {type: bool, value: 3}\n", "property Anchored"},
		{"missing tag", "class: Folder\nattributes:\n  A: {value: 3}\n", "attribute A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{".json", ".yaml", ".yml"}, reg.Extensions())

	_, err := reg.ForFile("game.YAML")
	assert.NoError(t, err)

	for _, name := range []string{"game.rbxl", "game.rbxlx", "model.rbxm", "model.RBXMX"} {
		_, err := reg.ForFile(name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Contains(t, err.Error(), "no decoder for place files")
	}

	_, err = reg.ForFile("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = reg.ForFile("Makefile")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	called := false
	reg.Register(".rbxl", DecoderFunc(func(io.Reader) (*instance.Instance, error) {
		called = true
		return instance.New("DataModel", "Stub"), nil
	}))
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/game.rbxl", []byte{0x3c, 0x72}, 0o644))
	root, err := reg.DecodeFile(fsys, "/game.rbxl")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "Stub", root.Name)
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := NewRegistry().DecodeFile(afero.NewMemMapFs(), "/none.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodedDocumentConverts(t *testing.T) {
	root, err := NewRegistry().DecodeFile(afero.NewOsFs(), "testdata/place.yaml")
	require.NoError(t, err)

	fsys := afero.NewMemMapFs()
	c, err := projection.NewConverter(fsys, projection.Options{})
	require.NoError(t, err)
	report, err := c.Run(context.Background(), root, "/out")
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.True(t, diag.IsInvalidProperty(report.Warnings[0]))
	assert.Equal(t, "Gadget", report.Warnings[0].Property)

	data, err := afero.ReadFile(fsys, "/out/Workspace/Tree/init.meta.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Workspace/Tree/Trunk"`)
}
