package externalize

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placesplit/internal/catalog"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/value"
)

func lookup(t *testing.T, class string) *catalog.Class {
	t.Helper()
	cat, err := catalog.Builtin()
	require.NoError(t, err)
	cls, ok := cat.Lookup(class)
	require.True(t, ok, class)
	return cls
}

func TestScriptLeafHasNoMetadata(t *testing.T) {
	inst := instance.New("Script", "Foo").
		Set("Source", value.String("print(1)")).
		Set("Disabled", value.Bool(false))

	res := Externalize(Request{
		Instance:       inst,
		Class:          lookup(t, "Script"),
		SourceProperty: "Source",
		ResolvedName:   "Foo",
	})

	assert.Nil(t, res.Meta)
	assert.Equal(t, []byte("print(1)"), res.Content)
	assert.Empty(t, res.Dropped)
}

func TestMissingSourceIsEmptyContent(t *testing.T) {
	res := Externalize(Request{
		Instance:       instance.New("ModuleScript", "Util"),
		Class:          lookup(t, "ModuleScript"),
		SourceProperty: "Source",
		ResolvedName:   "Util",
	})
	assert.NotNil(t, res.Content)
	assert.Empty(t, res.Content)
	assert.Empty(t, res.Dropped)
}

func TestNonTextSourceIsDropped(t *testing.T) {
	res := Externalize(Request{
		Instance:       instance.New("Script", "S").Set("Source", value.Int32(4)),
		Class:          lookup(t, "Script"),
		SourceProperty: "Source",
		ResolvedName:   "S",
	})
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "Source", res.Dropped[0].Name)
	assert.Empty(t, res.Content)
	assert.Nil(t, res.Meta)
}

func TestOnlyNonDefaultPropertiesKept(t *testing.T) {
	inst := instance.New("Part", "Block").
		Set("Anchored", value.Bool(true)).
		Set("CanCollide", value.Bool(true)).
		Set("Size", value.Vector3{X: 4, Y: 1, Z: 2}).
		Set("Transparency", value.Float32(0.5)).
		Set("Name", value.String("Block"))

	res := Externalize(Request{Instance: inst, Class: lookup(t, "Part"), ResolvedName: "Block"})

	require.NotNil(t, res.Meta)
	assert.Equal(t, "Part", res.Meta.ClassName)
	assert.Empty(t, res.Meta.Name)
	assert.Equal(t, map[string]value.Value{
		"Anchored":     value.Bool(true),
		"Transparency": value.Float32(0.5),
	}, res.Meta.Properties)
}

func TestPropertyWithoutDefaultKept(t *testing.T) {
	inst := instance.New("Folder", "Stuff").Set("Archivable", value.Bool(true))
	res := Externalize(Request{Instance: inst, Class: lookup(t, "Folder"), ResolvedName: "Stuff"})
	require.NotNil(t, res.Meta)
	assert.Contains(t, res.Meta.Properties, "Archivable")
}

func TestUnknownClassKeepsEverything(t *testing.T) {
	inst := instance.New("Gizmo", "G").Set("Anchored", value.Bool(false))
	res := Externalize(Request{Instance: inst, ResolvedName: "G"})
	require.NotNil(t, res.Meta)
	assert.Equal(t, value.Bool(false), res.Meta.Properties["Anchored"])
}

func TestRenamedNodeCarriesDisplayName(t *testing.T) {
	res := Externalize(Request{
		Instance:     instance.New("Folder", "a/b"),
		Class:        lookup(t, "Folder"),
		ResolvedName: "a_b",
	})
	require.NotNil(t, res.Meta)
	assert.Equal(t, "a/b", res.Meta.Name)
	assert.Empty(t, res.Meta.Properties)
}

func TestAttributesAndTagsKept(t *testing.T) {
	inst := instance.New("Folder", "F").SetAttribute("Team", value.String("Red"))
	inst.Tags = []string{"Lava", "Hazard"}

	res := Externalize(Request{Instance: inst, Class: lookup(t, "Folder"), ResolvedName: "F"})
	require.NotNil(t, res.Meta)
	assert.Equal(t, value.String("Red"), res.Meta.Attributes["Team"])
	assert.Equal(t, []string{"Lava", "Hazard"}, res.Meta.Tags)

	inst.Tags[0] = "Changed"
	assert.Equal(t, "Lava", res.Meta.Tags[0])
}

func TestInvalidValuesDropped(t *testing.T) {
	inst := instance.New("Part", "P").
		Set("Size", value.Vector3{X: float32(math.Inf(1))}).
		Set("Font", value.Unsupported{TypeName: "font"}).
		Set("Anchored", value.Bool(true)).
		SetAttribute("Bad", value.Float64(math.NaN()))

	res := Externalize(Request{Instance: inst, Class: lookup(t, "Part"), ResolvedName: "P"})

	require.Len(t, res.Dropped, 3)
	assert.Equal(t, "Font", res.Dropped[0].Name)
	assert.Equal(t, "Size", res.Dropped[1].Name)
	assert.Equal(t, "attribute Bad", res.Dropped[2].Label())
	for _, d := range res.Dropped {
		assert.True(t, errors.Is(d.Err, value.ErrNotEncodable), d.Name)
	}

	require.NotNil(t, res.Meta)
	assert.Equal(t, map[string]value.Value{"Anchored": value.Bool(true)}, res.Meta.Properties)
	assert.Empty(t, res.Meta.Attributes)
}

func TestRefsDeferredAndResolved(t *testing.T) {
	inst := instance.New("ObjectValue", "Link").
		Set("Value", value.Ref{ID: "target"})
	inst.SetAttribute("Other", value.Ref{ID: "gone"})

	res := Externalize(Request{Instance: inst, Class: lookup(t, "ObjectValue"), ResolvedName: "Link"})
	require.NotNil(t, res.Meta)
	assert.Empty(t, res.Dropped)

	dropped := res.Meta.ResolveRefs(func(id string) (string, bool) {
		if id == "target" {
			return "Workspace/Target", true
		}
		return "", false
	})
	require.Len(t, dropped, 1)
	assert.Equal(t, "Other", dropped[0].Name)
	assert.True(t, dropped[0].Attribute)
	assert.Equal(t, value.Ref{ID: "target", Path: "Workspace/Target"}, res.Meta.Properties["Value"])
	assert.NotContains(t, res.Meta.Attributes, "Other")
}

func TestNilRefMatchesDefault(t *testing.T) {
	inst := instance.New("ObjectValue", "Empty").Set("Value", value.Ref{})
	res := Externalize(Request{Instance: inst, Class: lookup(t, "ObjectValue"), ResolvedName: "Empty"})
	assert.Nil(t, res.Meta)
}

func TestMarshalShape(t *testing.T) {
	m := &Metadata{
		ClassName: "Part",
		Name:      "Spawn/1",
		Properties: map[string]value.Value{
			"Size":     value.Vector3{X: 1, Y: 2, Z: 3},
			"Anchored": value.Bool(true),
		},
		Tags: []string{"Lava"},
	}
	data, err := m.Marshal()
	require.NoError(t, err)

	want := `{
  "className": "Part",
  "name": "Spawn/1",
  "properties": {
    "Anchored": {
      "type": "bool",
      "value": true
    },
    "Size": {
      "type": "vector3",
      "value": [
        1,
        2,
        3
      ]
    }
  },
  "tags": [
    "Lava"
  ]
}
`
	assert.Equal(t, want, string(data))
}

func TestMarshalRejectsUnresolvedRef(t *testing.T) {
	m := &Metadata{ClassName: "ObjectValue", Properties: map[string]value.Value{"Value": value.Ref{ID: "x"}}}
	_, err := m.Marshal()
	assert.ErrorIs(t, err, value.ErrNotEncodable)
}

func TestMetadataRoundTrip(t *testing.T) {
	m := &Metadata{
		ClassName: "Model",
		Name:      "Tree:1",
		Properties: map[string]value.Value{
			"PrimaryPart": value.Ref{ID: "Workspace/Trunk", Path: "Workspace/Trunk"},
			"Scale":       value.Float64(1.25),
		},
		Attributes: map[string]value.Value{
			"Blob": value.BinaryString{0, 1, 2},
		},
		Tags: []string{"b", "a"},
	}
	data, err := m.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"name": "x"}`))
	assert.ErrorContains(t, err, "className")

	_, err = Unmarshal([]byte(`{"className": "Part", "extra": 1}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"className": "Part", "properties": {"A": {"type": "bool"}}}`))
	assert.ErrorContains(t, err, "A")
}

func TestValidateSchema(t *testing.T) {
	m := &Metadata{
		ClassName:  "Part",
		Properties: map[string]value.Value{"Anchored": value.Bool(true)},
		Tags:       []string{"x"},
	}
	data, err := m.Marshal()
	require.NoError(t, err)
	assert.NoError(t, Validate(data))

	assert.Error(t, Validate([]byte(`{"className": "Part", "properties": {"A": {"type": "font", "value": 1}}}`)))
	assert.Error(t, Validate([]byte(`{"properties": {}}`)))
	assert.Error(t, Validate([]byte(`{"className": "Part", "tags": [1]}`)))
	assert.Error(t, Validate([]byte(`not json`)))
}

func TestInvalidUTF8Dropped(t *testing.T) {
	inst := instance.New("Folder", "Bad\xffName").
		SetAttribute("Raw", value.String("a\xffb")).
		SetAttribute("Key\xfe", value.Bool(true)).
		SetAttribute("Label", value.String("e\u0301"))
	inst.Tags = []string{"Ok", "\xc3"}

	res := Externalize(Request{Instance: inst, Class: lookup(t, "Folder"), ResolvedName: "Bad_Name"})

	var labels []string
	for _, d := range res.Dropped {
		labels = append(labels, d.Label())
		assert.ErrorIs(t, d.Err, value.ErrNotEncodable, d.Label())
	}
	assert.Equal(t, []string{"attribute Key\xfe", "attribute Raw", TagsProperty, NameProperty}, labels)

	require.NotNil(t, res.Meta)
	assert.Empty(t, res.Meta.Name)
	assert.Equal(t, []string{"Ok"}, res.Meta.Tags)
	assert.Equal(t, map[string]value.Value{"Label": value.String("e\u0301")}, res.Meta.Attributes)

	data, err := res.Meta.Marshal()
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, value.String("e\u0301"), back.Attributes["Label"])
}
