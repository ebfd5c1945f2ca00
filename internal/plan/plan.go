// Package plan defines the write plan: the fully resolved description of
// every filesystem entity one conversion run will create.
//
// A plan is built once by the projection driver, then read concurrently by
// the writer and the manifest builder. Nothing mutates a plan after New
// returns.
package plan

import (
	"path"
	"slices"

	"github.com/roach88/placesplit/internal/externalize"
	"github.com/roach88/placesplit/internal/instance"
)

// Kind is the filesystem representation of one node.
type Kind string

const (
	// SourceFile is a single file holding the node's source text.
	SourceFile Kind = "SourceFile"

	// DirectoryWithInit is a directory whose own source lives in an init file.
	DirectoryWithInit Kind = "DirectoryWithInit"

	// PlainDirectory is a directory with no source file of its own.
	PlainDirectory Kind = "PlainDirectory"
)

// Valid reports whether k is one of the three representation kinds.
func (k Kind) Valid() bool {
	switch k {
	case SourceFile, DirectoryWithInit, PlainDirectory:
		return true
	}
	return false
}

const (
	// InitName is the stem of a directory's own source and metadata files.
	InitName = "init"

	// MetaSuffix is appended to a stem to name its metadata sidecar.
	MetaSuffix = ".meta.json"

	// InitMetaFile holds a directory's metadata.
	InitMetaFile = InitName + MetaSuffix
)

// InitFile returns the init source file name for a script extension.
func InitFile(ext string) string {
	return InitName + "." + ext
}

// Node is one entity of the plan.
type Node struct {
	Kind Kind

	// Name is the resolved path component. For SourceFile it excludes the
	// extension.
	Name string

	// Extension is the script extension without a leading dot
	// ("server.lua"). Empty for PlainDirectory.
	Extension string

	// Class is the originating class identifier.
	Class string

	// Content is the primary source text. Only meaningful when the node
	// carries a source file.
	Content []byte

	// Meta is the externalized metadata, nil when no sidecar is written.
	Meta *externalize.Metadata

	Children []*Node
	Parent   *Node

	// Source is the originating instance, kept for diagnostics.
	Source *instance.Instance

	// Seq is the node's preorder position; the root is 0.
	Seq int

	// Depth is the distance from the root.
	Depth int
}

// IsRoot reports whether n is the output root.
func (n *Node) IsRoot() bool {
	return n.Parent == nil
}

// IsDir reports whether n materializes as a directory.
func (n *Node) IsDir() bool {
	return n.Kind != SourceFile
}

// HasSource reports whether n writes a primary source file.
func (n *Node) HasSource() bool {
	return n.Kind == SourceFile || n.Kind == DirectoryWithInit
}

// FileName returns the component n occupies in its parent directory.
func (n *Node) FileName() string {
	if n.Kind == SourceFile {
		return n.Name + "." + n.Extension
	}
	return n.Name
}

// Path returns n's slash-separated path relative to the output root. The
// root's path is ".".
func (n *Node) Path() string {
	if n.IsRoot() {
		return "."
	}
	return path.Join(n.Parent.Path(), n.FileName())
}

// SourcePath returns the path of the primary source file, or "" when n
// has none.
func (n *Node) SourcePath() string {
	switch n.Kind {
	case SourceFile:
		return n.Path()
	case DirectoryWithInit:
		return path.Join(n.Path(), InitFile(n.Extension))
	}
	return ""
}

// MetaPath returns the path of the metadata sidecar, or "" when n has no
// metadata.
func (n *Node) MetaPath() string {
	if n.Meta == nil {
		return ""
	}
	if n.Kind == SourceFile {
		return path.Join(n.Parent.Path(), n.Name+MetaSuffix)
	}
	return path.Join(n.Path(), InitMetaFile)
}

// InstancePath returns the dotted display path of n's originating
// instance, "" for the root.
func (n *Node) InstancePath() string {
	var parts []string
	for cur := n; !cur.IsRoot() && cur.Source != nil; cur = cur.Parent {
		parts = append(parts, cur.Source.Name)
	}
	slices.Reverse(parts)
	return instance.FullName(parts)
}

// Plan is a finalized write plan.
type Plan struct {
	Root  *Node
	nodes []*Node
}

// New finalizes a plan rooted at root: it links parents and assigns
// preorder sequence numbers and depths.
func New(root *Node) *Plan {
	p := &Plan{Root: root}
	root.Parent = nil
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		n.Seq = len(p.nodes)
		n.Depth = depth
		p.nodes = append(p.nodes, n)
		for _, c := range n.Children {
			c.Parent = n
			visit(c, depth+1)
		}
	}
	visit(root, 0)
	return p
}

// Nodes returns every node in preorder (document order).
func (p *Plan) Nodes() []*Node {
	return p.nodes
}

// Len returns the number of nodes, root included.
func (p *Plan) Len() int {
	return len(p.nodes)
}

// Levels groups nodes by depth. Within a level nodes keep preorder, so
// every node's parent sits in the previous level.
func (p *Plan) Levels() [][]*Node {
	var levels [][]*Node
	for _, n := range p.nodes {
		for len(levels) <= n.Depth {
			levels = append(levels, nil)
		}
		levels[n.Depth] = append(levels[n.Depth], n)
	}
	return levels
}
