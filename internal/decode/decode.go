// Package decode turns input files into instance trees.
//
// Decoders are chosen by file extension. The bundled decoder reads tree
// documents, YAML or JSON files that spell the tree out node by node:
//
//	class: DataModel
//	name: Place
//	children:
//	  - class: Script
//	    name: Main
//	    id: main
//	    properties:
//	      Source: {type: string, value: "print(1)"}
//	      Disabled: {type: bool, value: true}
//	    attributes:
//	      Team: {type: string, value: Red}
//	    tags: [Boot]
//
// Property and attribute values use the canonical tagged form. A reference
// names its target's id: {type: ref, value: main}.
//
// Binary and XML place files (.rbxl, .rbxm, .rbxlx, .rbxmx) need a decoder
// registered by the embedding program; none is bundled.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/roach88/placesplit/internal/instance"
)

// ErrUnsupportedFormat is returned for files no registered decoder reads.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// PlaceFormats are the scene file extensions the decoder registry knows by
// name but does not decode itself.
var PlaceFormats = []string{".rbxl", ".rbxlx", ".rbxm", ".rbxmx"}

// Decoder reads one input file.
type Decoder interface {
	Decode(r io.Reader) (*instance.Instance, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.Reader) (*instance.Instance, error)

func (f DecoderFunc) Decode(r io.Reader) (*instance.Instance, error) {
	return f(r)
}

// Registry maps lower-case file extensions to decoders.
type Registry struct {
	byExt map[string]Decoder
}

// NewRegistry returns a registry with the tree-document decoder bound to
// .yaml, .yml and .json.
func NewRegistry() *Registry {
	r := &Registry{byExt: map[string]Decoder{}}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		r.Register(ext, DecoderFunc(DecodeDocument))
	}
	return r
}

// Register binds ext (with its leading dot) to d, replacing any previous
// binding.
func (r *Registry) Register(ext string, d Decoder) {
	r.byExt[strings.ToLower(ext)] = d
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	return slices.Sorted(maps.Keys(r.byExt))
}

// ForFile returns the decoder for path's extension.
func (r *Registry) ForFile(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if d, ok := r.byExt[ext]; ok {
		return d, nil
	}
	if slices.Contains(PlaceFormats, ext) {
		return nil, fmt.Errorf("%w %s: no decoder for place files is registered; export the place as a tree document (%s)",
			ErrUnsupportedFormat, ext, strings.Join(r.Extensions(), ", "))
	}
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(path))
	}
	return nil, fmt.Errorf("%w %s", ErrUnsupportedFormat, ext)
}

// DecodeFile reads and decodes path from fsys.
func (r *Registry) DecodeFile(fsys afero.Fs, path string) (*instance.Instance, error) {
	d, err := r.ForFile(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	root, err := d.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return root, nil
}
