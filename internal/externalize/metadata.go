package externalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/placesplit/internal/value"
)

// Metadata is the sidecar payload of one node. Its JSON form is
//
//	{
//	  "className": "Part",
//	  "name": "Spawn/1",
//	  "properties": {"Anchored": {"type": "bool", "value": true}},
//	  "attributes": {"Team": {"type": "string", "value": "Red"}},
//	  "tags": ["Lava"]
//	}
//
// with every key but className optional. Name is present only when the
// resolved path component differs from the display name.
type Metadata struct {
	ClassName  string
	Name       string
	Properties map[string]value.Value
	Attributes map[string]value.Value
	Tags       []string
}

// Empty reports whether the payload carries nothing beyond the class.
func (m *Metadata) Empty() bool {
	return m.Name == "" && len(m.Properties) == 0 && len(m.Attributes) == 0 && len(m.Tags) == 0
}

// ResolveRefs fills in the layout path of every non-nil reference.
// resolve maps an identity token to a layout path. References it cannot
// place are removed from the payload and returned as dropped entries.
func (m *Metadata) ResolveRefs(resolve func(id string) (string, bool)) []Dropped {
	var dropped []Dropped
	fix := func(values map[string]value.Value, attribute bool) {
		for _, k := range value.SortedKeys(values) {
			ref, ok := values[k].(value.Ref)
			if !ok || ref.IsNil() {
				continue
			}
			p, found := resolve(ref.ID)
			if !found {
				delete(values, k)
				dropped = append(dropped, Dropped{
					Name:      k,
					Attribute: attribute,
					Err:       fmt.Errorf("%w: reference %q points outside the tree", value.ErrNotEncodable, ref.ID),
				})
				continue
			}
			ref.Path = p
			values[k] = ref
		}
	}
	fix(m.Properties, false)
	fix(m.Attributes, true)
	return dropped
}

// Marshal encodes the payload as indented canonical JSON.
func (m *Metadata) Marshal() ([]byte, error) {
	doc := map[string]any{"className": m.ClassName}
	if m.Name != "" {
		doc["name"] = m.Name
	}
	if len(m.Properties) > 0 {
		props, err := encodeAll(m.Properties)
		if err != nil {
			return nil, fmt.Errorf("properties: %w", err)
		}
		doc["properties"] = props
	}
	if len(m.Attributes) > 0 {
		attrs, err := encodeAll(m.Attributes)
		if err != nil {
			return nil, fmt.Errorf("attributes: %w", err)
		}
		doc["attributes"] = attrs
	}
	if len(m.Tags) > 0 {
		doc["tags"] = slices.Clone(m.Tags)
	}
	return value.MarshalIndent(doc)
}

func encodeAll(values map[string]value.Value) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, v := range values {
		enc, err := value.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

type metadataJSON struct {
	ClassName  string                    `json:"className"`
	Name       string                    `json:"name,omitempty"`
	Properties map[string]map[string]any `json:"properties,omitempty"`
	Attributes map[string]map[string]any `json:"attributes,omitempty"`
	Tags       []string                  `json:"tags,omitempty"`
}

// Unmarshal parses a payload written by Marshal. Reference values come
// back with both ID and Path set to the encoded layout path.
func Unmarshal(data []byte) (*Metadata, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var raw metadataJSON
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if raw.ClassName == "" {
		return nil, fmt.Errorf("decode metadata: missing className")
	}

	m := &Metadata{ClassName: raw.ClassName, Name: raw.Name, Tags: raw.Tags}
	var err error
	if m.Properties, err = decodeAll(raw.Properties); err != nil {
		return nil, fmt.Errorf("decode metadata properties: %w", err)
	}
	if m.Attributes, err = decodeAll(raw.Attributes); err != nil {
		return nil, fmt.Errorf("decode metadata attributes: %w", err)
	}
	return m, nil
}

func decodeAll(raw map[string]map[string]any) (map[string]value.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]value.Value, len(raw))
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		v, err := value.Decode(raw[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
