// Package instance defines the decoded scene tree consumed by the projection.
//
// Trees are produced once by a decoder and never mutated afterwards. Parent
// and child edges form a strict tree; reference-valued properties are
// non-owning cross links and are never walked.
package instance

import (
	"strings"

	"github.com/roach88/placesplit/internal/value"
)

// Instance is one node of the decoded tree.
type Instance struct {
	// Class is the class identifier, e.g. "Script" or "Folder".
	Class string

	// Name is the display name. It need not be unique among siblings.
	Name string

	// ID is the identity token reference properties point at.
	// Decoders must keep it unique within one tree when it is set.
	ID string

	// Properties maps property name to typed value. "Name" is carried by
	// the Name field, never here.
	Properties map[string]value.Value

	// Attributes are arbitrary key/value annotations attached to the node.
	Attributes map[string]value.Value

	// Tags are free-form labels attached to the node.
	Tags []string

	// Children in document order.
	Children []*Instance
}

// New creates an instance with empty property maps.
func New(class, name string) *Instance {
	return &Instance{
		Class:      class,
		Name:       name,
		Properties: map[string]value.Value{},
	}
}

// WithID sets the identity token and returns the instance for chaining.
func (i *Instance) WithID(id string) *Instance {
	i.ID = id
	return i
}

// Set stores a property and returns the instance for chaining.
func (i *Instance) Set(name string, v value.Value) *Instance {
	if i.Properties == nil {
		i.Properties = map[string]value.Value{}
	}
	i.Properties[name] = v
	return i
}

// SetAttribute stores an attribute and returns the instance for chaining.
func (i *Instance) SetAttribute(name string, v value.Value) *Instance {
	if i.Attributes == nil {
		i.Attributes = map[string]value.Value{}
	}
	i.Attributes[name] = v
	return i
}

// AddChild appends children in order and returns the instance for chaining.
func (i *Instance) AddChild(children ...*Instance) *Instance {
	i.Children = append(i.Children, children...)
	return i
}

// Property returns the named property, if present.
func (i *Instance) Property(name string) (value.Value, bool) {
	v, ok := i.Properties[name]
	return v, ok
}

// HasChildren reports whether the node has at least one child.
func (i *Instance) HasChildren() bool {
	return len(i.Children) > 0
}

// Walk visits the tree depth first in document order. The visitor receives
// the node and the display names from the root down to it. Returning false
// skips the node's children.
func Walk(root *Instance, visit func(node *Instance, path []string) bool) {
	var walk func(node *Instance, path []string)
	walk = func(node *Instance, path []string) {
		if !visit(node, path) {
			return
		}
		for _, child := range node.Children {
			walk(child, append(path[:len(path):len(path)], child.Name))
		}
	}
	walk(root, nil)
}

// Count returns the number of nodes in the tree, root included.
func Count(root *Instance) int {
	n := 0
	Walk(root, func(*Instance, []string) bool {
		n++
		return true
	})
	return n
}

// Index maps identity tokens to nodes. Nodes without an ID are skipped.
// When a decoder produced duplicate IDs the first node in document order wins.
func Index(root *Instance) map[string]*Instance {
	idx := map[string]*Instance{}
	Walk(root, func(node *Instance, _ []string) bool {
		if node.ID != "" {
			if _, seen := idx[node.ID]; !seen {
				idx[node.ID] = node
			}
		}
		return true
	})
	return idx
}

// FullName joins display names with dots, the way the scene editor shows
// them. The root is not part of the path.
func FullName(path []string) string {
	return strings.Join(path, ".")
}
