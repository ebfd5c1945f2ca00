package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placesplit/internal/externalize"
)

func samplePlan() *Plan {
	script := &Node{Kind: SourceFile, Name: "Main", Extension: "server.lua", Class: "Script",
		Meta: &externalize.Metadata{ClassName: "Script", Name: "Main?"}}
	module := &Node{Kind: DirectoryWithInit, Name: "Lib", Extension: "lua", Class: "ModuleScript",
		Children: []*Node{{Kind: SourceFile, Name: "Util", Extension: "lua", Class: "ModuleScript"}}}
	sss := &Node{Kind: PlainDirectory, Name: "ServerScriptService", Class: "ServerScriptService",
		Children: []*Node{script, module}}
	ws := &Node{Kind: PlainDirectory, Name: "Workspace", Class: "Workspace",
		Meta: &externalize.Metadata{ClassName: "Workspace", Tags: []string{"x"}}}
	return New(&Node{Kind: PlainDirectory, Class: "DataModel", Children: []*Node{ws, sss}})
}

func TestNewAssignsPreorder(t *testing.T) {
	p := samplePlan()
	require.Equal(t, 6, p.Len())

	var names []string
	for i, n := range p.Nodes() {
		assert.Equal(t, i, n.Seq)
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"", "Workspace", "ServerScriptService", "Main", "Lib", "Util"}, names)
	assert.True(t, p.Root.IsRoot())
	assert.Equal(t, 3, p.Nodes()[5].Depth)
}

func TestPaths(t *testing.T) {
	p := samplePlan()
	nodes := p.Nodes()

	tests := []struct {
		node   *Node
		path   string
		source string
		meta   string
	}{
		{nodes[0], ".", "", ""},
		{nodes[1], "Workspace", "", "Workspace/init.meta.json"},
		{nodes[3], "ServerScriptService/Main.server.lua", "ServerScriptService/Main.server.lua", "ServerScriptService/Main.meta.json"},
		{nodes[4], "ServerScriptService/Lib", "ServerScriptService/Lib/init.lua", ""},
		{nodes[5], "ServerScriptService/Lib/Util.lua", "ServerScriptService/Lib/Util.lua", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.path, tt.node.Path())
			assert.Equal(t, tt.source, tt.node.SourcePath())
			assert.Equal(t, tt.meta, tt.node.MetaPath())
		})
	}
}

func TestLevelsKeepParentsFirst(t *testing.T) {
	p := samplePlan()
	levels := p.Levels()
	require.Len(t, levels, 4)
	assert.Len(t, levels[0], 1)
	assert.Len(t, levels[1], 2)
	assert.Len(t, levels[2], 2)
	assert.Len(t, levels[3], 1)

	for d := 1; d < len(levels); d++ {
		for _, n := range levels[d] {
			assert.Equal(t, d-1, n.Parent.Depth)
		}
	}
}

func TestKind(t *testing.T) {
	assert.True(t, SourceFile.Valid())
	assert.False(t, Kind("Symlink").Valid())

	n := &Node{Kind: DirectoryWithInit}
	assert.True(t, n.IsDir())
	assert.True(t, n.HasSource())
	assert.Equal(t, "init.client.lua", InitFile("client.lua"))
}
