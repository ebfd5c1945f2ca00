// Package externalize decides which parts of a node cannot be expressed by
// its file name or primary content and encodes them as a metadata sidecar.
//
// A property is externalized when its value differs from the class default
// in the catalog. Classes without a catalog entry have no defaults, so all
// their properties are kept. Attributes and tags are always kept. A value
// with no canonical encoding is dropped and reported; it never fails the
// node.
package externalize

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/roach88/placesplit/internal/catalog"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/value"
)

// NameProperty is carried by the path component and never externalized.
const NameProperty = "Name"

// TagsProperty labels dropped tags in reports.
const TagsProperty = "Tags"

// Dropped is a property or attribute left out of the payload.
type Dropped struct {
	Name      string
	Attribute bool
	Err       error
}

// Label is "attribute X" or "X", for reports.
func (d Dropped) Label() string {
	if d.Attribute {
		return "attribute " + d.Name
	}
	return d.Name
}

// Result is the externalization of one node.
type Result struct {
	// Meta is the sidecar payload, nil when none is needed.
	Meta *Metadata

	// Content is the primary source text for script classes.
	Content []byte

	// Dropped lists what could not be encoded: properties, then
	// attributes, each sorted by name, then tags and the name.
	Dropped []Dropped
}

// Request is the input for one node.
type Request struct {
	Instance *instance.Instance

	// Class is the catalog entry, nil for classes the catalog lacks.
	Class *catalog.Class

	// SourceProperty names the content property, "" for non-scripts.
	SourceProperty string

	// ResolvedName is the path component the name resolver assigned.
	ResolvedName string
}

// Externalize computes the payload and content of one node.
//
// References are kept unencoded: their layout path is unknown until the
// whole plan exists. Call Metadata.ResolveRefs before Marshal.
func Externalize(req Request) Result {
	inst := req.Instance
	var res Result

	if req.SourceProperty != "" {
		content, err := extractContent(inst, req.SourceProperty)
		if err != nil {
			res.Dropped = append(res.Dropped, Dropped{Name: req.SourceProperty, Err: err})
		}
		res.Content = content
	}

	meta := &Metadata{ClassName: inst.Class}

	for _, k := range value.SortedKeys(inst.Properties) {
		if k == NameProperty || k == req.SourceProperty {
			continue
		}
		v := inst.Properties[k]
		if err := checkEncodable(k, v); err != nil {
			res.Dropped = append(res.Dropped, Dropped{Name: k, Err: err})
			continue
		}
		if req.Class != nil {
			if def, ok := req.Class.Default(k); ok && value.Equal(v, def) {
				continue
			}
		}
		if meta.Properties == nil {
			meta.Properties = map[string]value.Value{}
		}
		meta.Properties[k] = v
	}

	for _, k := range value.SortedKeys(inst.Attributes) {
		v := inst.Attributes[k]
		if err := checkEncodable(k, v); err != nil {
			res.Dropped = append(res.Dropped, Dropped{Name: k, Attribute: true, Err: err})
			continue
		}
		if meta.Attributes == nil {
			meta.Attributes = map[string]value.Value{}
		}
		meta.Attributes[k] = v
	}

	for _, tag := range inst.Tags {
		if !utf8.ValidString(tag) {
			res.Dropped = append(res.Dropped, Dropped{Name: TagsProperty, Err: fmt.Errorf("%w: tag %q is not valid UTF-8", value.ErrNotEncodable, tag)})
			continue
		}
		meta.Tags = append(meta.Tags, tag)
	}
	if req.ResolvedName != inst.Name {
		if utf8.ValidString(inst.Name) {
			meta.Name = inst.Name
		} else {
			res.Dropped = append(res.Dropped, Dropped{Name: NameProperty, Err: fmt.Errorf("%w: name is not valid UTF-8", value.ErrNotEncodable)})
		}
	}

	if !meta.Empty() {
		res.Meta = meta
	}
	return res
}

// checkEncodable encodes v once to find values with no canonical form.
// Non-nil references cannot be encoded yet and are checked when resolved.
// A key that is not valid UTF-8 cannot be written either.
func checkEncodable(key string, v value.Value) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: key is not valid UTF-8", value.ErrNotEncodable)
	}
	if ref, ok := v.(value.Ref); ok {
		if ref.IsNil() || ref.Path != "" {
			return nil
		}
		v = value.Ref{ID: ref.ID, Path: ref.ID}
	}
	_, err := value.Encode(v)
	return err
}

// extractContent reads the primary source text. A missing property is
// empty content. Text-like values are taken verbatim; anything else is
// reported and yields empty content.
func extractContent(inst *instance.Instance, prop string) ([]byte, error) {
	v, ok := inst.Property(prop)
	if !ok {
		return []byte{}, nil
	}
	switch s := v.(type) {
	case value.String:
		return []byte(s), nil
	case value.Content:
		return []byte(s), nil
	case value.BinaryString:
		return slices.Clone([]byte(s)), nil
	default:
		return []byte{}, fmt.Errorf("%w: source property holds %s, not text", value.ErrNotEncodable, v.Type())
	}
}
