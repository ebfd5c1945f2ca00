package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placesplit/internal/value"
)

func sampleTree() *Instance {
	return New("DataModel", "Game").AddChild(
		New("Workspace", "Workspace").AddChild(
			New("Part", "Baseplate").WithID("p1").Set("Anchored", value.Bool(true)),
			New("Model", "House").AddChild(New("Part", "Door").WithID("p2")),
		),
		New("ServerScriptService", "ServerScriptService").AddChild(
			New("Script", "Main").Set("Source", value.String("print(1)")),
		),
	)
}

func TestWalkDocumentOrder(t *testing.T) {
	var visited []string
	Walk(sampleTree(), func(node *Instance, path []string) bool {
		visited = append(visited, FullName(path))
		return true
	})

	assert.Equal(t, []string{
		"",
		"Workspace",
		"Workspace.Baseplate",
		"Workspace.House",
		"Workspace.House.Door",
		"ServerScriptService",
		"ServerScriptService.Main",
	}, visited)
}

func TestWalkSkipChildren(t *testing.T) {
	var visited []string
	Walk(sampleTree(), func(node *Instance, path []string) bool {
		visited = append(visited, node.Name)
		return node.Class != "Workspace"
	})
	assert.Equal(t, []string{"Game", "Workspace", "ServerScriptService", "Main"}, visited)
}

func TestWalkPathsAreNotAliased(t *testing.T) {
	paths := map[string][]string{}
	Walk(sampleTree(), func(node *Instance, path []string) bool {
		paths[node.Name] = path
		return true
	})
	assert.Equal(t, []string{"Workspace", "Baseplate"}, paths["Baseplate"])
	assert.Equal(t, []string{"Workspace", "House"}, paths["House"])
}

func TestCountAndIndex(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, 7, Count(tree))

	idx := Index(tree)
	require.Len(t, idx, 2)
	assert.Equal(t, "Baseplate", idx["p1"].Name)
	assert.Equal(t, "Door", idx["p2"].Name)
}

func TestIndexFirstDuplicateWins(t *testing.T) {
	tree := New("Folder", "root").AddChild(
		New("Folder", "a").WithID("dup"),
		New("Folder", "b").WithID("dup"),
	)
	assert.Equal(t, "a", Index(tree)["dup"].Name)
}

func TestPropertyAccessors(t *testing.T) {
	inst := New("StringValue", "v").Set("Value", value.String("x")).SetAttribute("Speed", value.Float64(2))

	v, ok := inst.Property("Value")
	require.True(t, ok)
	assert.Equal(t, value.String("x"), v)

	_, ok = inst.Property("Missing")
	assert.False(t, ok)
	assert.Equal(t, value.Float64(2), inst.Attributes["Speed"])
	assert.False(t, inst.HasChildren())
}
