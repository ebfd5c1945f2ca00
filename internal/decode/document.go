package decode

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/placesplit/internal/externalize"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/value"
)

type document struct {
	Class      string                    `yaml:"class"`
	Name       string                    `yaml:"name"`
	ID         string                    `yaml:"id,omitempty"`
	Properties map[string]map[string]any `yaml:"properties,omitempty"`
	Attributes map[string]map[string]any `yaml:"attributes,omitempty"`
	Tags       []string                  `yaml:"tags,omitempty"`
	Children   []document                `yaml:"children,omitempty"`
}

// DecodeDocument reads a YAML or JSON tree document. Unknown keys, a
// missing class and duplicate ids are errors. Reference values are left
// unresolved: only their target id is kept.
func DecodeDocument(r io.Reader) (*instance.Instance, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty tree document")
		}
		return nil, fmt.Errorf("parse tree document: %w", err)
	}

	b := &builder{ids: map[string]string{}}
	return b.build(&doc, "root")
}

type builder struct {
	// ids maps each id to the location that declared it.
	ids map[string]string
}

func (b *builder) build(doc *document, where string) (*instance.Instance, error) {
	if doc.Class == "" {
		return nil, fmt.Errorf("%s: class is required", where)
	}
	if doc.ID != "" {
		if prev, dup := b.ids[doc.ID]; dup {
			return nil, fmt.Errorf("%s: id %q already used by %s", where, doc.ID, prev)
		}
		b.ids[doc.ID] = where
	}

	inst := instance.New(doc.Class, doc.Name).WithID(doc.ID)
	for _, k := range value.SortedKeys(doc.Properties) {
		if k == externalize.NameProperty {
			return nil, fmt.Errorf("%s: property %s: use the name key", where, k)
		}
		v, err := decodeValue(doc.Properties[k])
		if err != nil {
			return nil, fmt.Errorf("%s: property %s: %w", where, k, err)
		}
		inst.Set(k, v)
	}
	for _, k := range value.SortedKeys(doc.Attributes) {
		v, err := decodeValue(doc.Attributes[k])
		if err != nil {
			return nil, fmt.Errorf("%s: attribute %s: %w", where, k, err)
		}
		inst.SetAttribute(k, v)
	}
	inst.Tags = doc.Tags

	for i := range doc.Children {
		child, err := b.build(&doc.Children[i], where+".children["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		inst.AddChild(child)
	}
	return inst, nil
}

func decodeValue(tagged map[string]any) (value.Value, error) {
	v, err := value.Decode(tagged)
	if err != nil {
		return nil, err
	}
	if ref, ok := v.(value.Ref); ok {
		return value.Ref{ID: ref.ID}, nil
	}
	return v, nil
}
