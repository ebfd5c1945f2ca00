// Package manifest builds the project manifest: a JSON document mirroring
// the materialized layout that a build tool reads to reassemble the tree.
//
// Children are keyed by their resolved name and must keep document order,
// so the manifest has its own encoder and decoder rather than going
// through map-based JSON, which would sort the keys.
//
//	{
//	  "name": "Place",
//	  "tree": {
//	    "$className": "DataModel",
//	    "Workspace": {
//	      "$className": "Workspace",
//	      "$path": "Workspace",
//	      "Map": {"$className": "Folder"}
//	    }
//	  }
//	}
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/placesplit/internal/plan"
	"github.com/roach88/placesplit/internal/value"
)

// FileName is the manifest's name at the output root.
const FileName = "default.project.json"

// Keys with special meaning inside a tree node. Children may not use them.
const (
	KeyClassName = "$className"
	KeyPath      = "$path"
)

// ReservedKeys are claimed in every directory so no child key collides
// with a node field.
var ReservedKeys = []string{KeyClassName, KeyPath}

// Manifest is the whole document.
type Manifest struct {
	Name string
	Tree *Node
}

// Node is one tree entry.
type Node struct {
	ClassName string

	// Path points into the layout, relative to the manifest. Empty when
	// the entry's location follows from its parent and key.
	Path string

	Children []Child
}

// Child is a keyed child entry.
type Child struct {
	Key  string
	Node *Node
}

// Child returns the child with the given key.
func (n *Node) Child(key string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Key == key {
			return c.Node, true
		}
	}
	return nil, false
}

// Build mirrors the plan. Only nodes for which include returns true appear,
// and a node's subtree is dropped with it. A nil include keeps every node.
//
// $path is set on source files, where the key omits the extension, and on
// top-level entries. Nested directories are located by their key.
func Build(name string, p *plan.Plan, include func(*plan.Node) bool) *Manifest {
	var build func(n *plan.Node) *Node
	build = func(n *plan.Node) *Node {
		mn := &Node{ClassName: n.Class}
		if n.Kind == plan.SourceFile || (!n.IsRoot() && n.Parent.IsRoot()) {
			mn.Path = n.Path()
		}
		for _, c := range n.Children {
			if include != nil && !include(c) {
				continue
			}
			mn.Children = append(mn.Children, Child{Key: c.Name, Node: build(c)})
		}
		return mn
	}
	return &Manifest{Name: name, Tree: build(p.Root)}
}

// Count returns the number of entries below the tree root.
func (m *Manifest) Count() int {
	var count func(n *Node) int
	count = func(n *Node) int {
		total := 0
		for _, c := range n.Children {
			total += 1 + count(c.Node)
		}
		return total
	}
	return count(m.Tree)
}

// Marshal encodes the manifest as indented JSON with children in order.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	if err := writeString(&buf, m.Name); err != nil {
		return nil, err
	}
	buf.WriteString(`,"tree":`)
	if err := writeNode(&buf, m.Tree); err != nil {
		return nil, err
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent manifest: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	data, err := value.MarshalCanonical(s)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

func writeNode(buf *bytes.Buffer, n *Node) error {
	buf.WriteString(`{"$className":`)
	if err := writeString(buf, n.ClassName); err != nil {
		return err
	}
	if n.Path != "" {
		buf.WriteString(`,"$path":`)
		if err := writeString(buf, n.Path); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if c.Key == KeyClassName || c.Key == KeyPath {
			return fmt.Errorf("child key %q is reserved", c.Key)
		}
		buf.WriteByte(',')
		if err := writeString(buf, c.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeNode(buf, c.Node); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// Decode parses a manifest, keeping child order. It checks structure only;
// use Validate for the full schema.
func Decode(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	m := &Manifest{}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "name":
			if err := dec.Decode(&m.Name); err != nil {
				return nil, fmt.Errorf("manifest name: %w", err)
			}
		case "tree":
			if m.Tree, err = decodeNode(dec, "tree"); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("manifest: unknown key %q", key)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("manifest: trailing data")
	}
	if m.Tree == nil {
		return nil, fmt.Errorf("manifest: missing tree")
	}
	return m, nil
}

func decodeNode(dec *json.Decoder, where string) (*Node, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	n := &Node{}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		switch key {
		case KeyClassName:
			if err := dec.Decode(&n.ClassName); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", where, key, err)
			}
		case KeyPath:
			if err := dec.Decode(&n.Path); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", where, key, err)
			}
		default:
			child, err := decodeNode(dec, where+"."+key)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, Child{Key: key, Node: child})
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	if n.ClassName == "" {
		return nil, fmt.Errorf("%s: missing %s", where, KeyClassName)
	}
	return n, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("manifest: expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("manifest: expected key, got %v", tok)
	}
	return key, nil
}
