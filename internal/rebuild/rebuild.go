// Package rebuild reconstructs an instance tree from a project directory:
// the manifest gives the shape and classes, the layout gives names and
// source text, and the metadata sidecars give everything else.
//
// It is the inverse of the projection. A tree converted and then rebuilt
// has the same classes, names, child order, and property values, except
// that properties equal to their class default are absent and identity
// tokens are replaced by layout paths. A script's source file always exists,
// so a script that had no source property comes back with an empty one.
package rebuild

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/roach88/placesplit/internal/externalize"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/manifest"
	"github.com/roach88/placesplit/internal/plan"
	"github.com/roach88/placesplit/internal/syncrule"
	"github.com/roach88/placesplit/internal/value"
)

// Error locates a rebuild failure in the project directory.
type Error struct {
	// Path is relative to the project root, slash separated.
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrLayout is wrapped by errors where the layout disagrees with the
// manifest.
var ErrLayout = errors.New("layout does not match manifest")

// Project is a rebuilt project.
type Project struct {
	Manifest *manifest.Manifest

	// Tree is the reconstructed instance tree. Every instance's ID is its
	// layout path, so references resolve against it directly.
	Tree *instance.Instance

	// Files is the number of source and metadata files read.
	Files int
}

// Loader reads projects from one filesystem.
type Loader struct {
	fs         afero.Fs
	classifier *syncrule.Classifier
}

// NewLoader returns a loader. The classifier supplies each script class's
// source property.
func NewLoader(fsys afero.Fs, classifier *syncrule.Classifier) *Loader {
	return &Loader{fs: fsys, classifier: classifier}
}

// Load reads the project rooted at root. The manifest and every metadata
// file are validated against their schemas first.
func (l *Loader) Load(root string) (*Project, error) {
	data, err := afero.ReadFile(l.fs, filepath.Join(root, manifest.FileName))
	if err != nil {
		return nil, &Error{Path: manifest.FileName, Err: err}
	}
	if err := manifest.Validate(data); err != nil {
		return nil, &Error{Path: manifest.FileName, Err: err}
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return nil, &Error{Path: manifest.FileName, Err: err}
	}

	r := &reader{fs: l.fs, root: root, classifier: l.classifier}
	tree, err := r.directory(".", m.Tree, m.Name)
	if err != nil {
		return nil, err
	}
	return &Project{Manifest: m, Tree: tree, Files: r.files}, nil
}

type reader struct {
	fs         afero.Fs
	root       string
	classifier *syncrule.Classifier
	files      int
}

func (r *reader) abs(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

func (r *reader) entry(rel string, mn *manifest.Node, key string) (*instance.Instance, error) {
	info, err := r.fs.Stat(r.abs(rel))
	if err != nil {
		return nil, &Error{Path: rel, Err: fmt.Errorf("%w: %w", ErrLayout, err)}
	}
	if info.IsDir() {
		return r.directory(rel, mn, key)
	}
	return r.sourceFile(rel, mn, key)
}

func (r *reader) directory(rel string, mn *manifest.Node, key string) (*instance.Instance, error) {
	inst := instance.New(mn.ClassName, key).WithID(rel)

	rule := r.classifier.Classify(mn.ClassName, true)
	if rule.SourceProperty != "" {
		content, found, err := r.read(path.Join(rel, plan.InitFile(rule.Extension)))
		if err != nil {
			return nil, err
		}
		if found {
			inst.Set(rule.SourceProperty, value.String(content))
		}
	}

	if err := r.applyMeta(inst, path.Join(rel, plan.InitMetaFile)); err != nil {
		return nil, err
	}

	for _, c := range mn.Children {
		childRel := c.Node.Path
		if childRel == "" {
			childRel = path.Join(rel, c.Key)
		}
		child, err := r.entry(childRel, c.Node, c.Key)
		if err != nil {
			return nil, err
		}
		inst.AddChild(child)
	}
	return inst, nil
}

func (r *reader) sourceFile(rel string, mn *manifest.Node, key string) (*instance.Instance, error) {
	if len(mn.Children) > 0 {
		return nil, &Error{Path: rel, Err: fmt.Errorf("%w: source file has %d children", ErrLayout, len(mn.Children))}
	}
	rule := r.classifier.Classify(mn.ClassName, false)
	if rule.Kind != plan.SourceFile {
		return nil, &Error{Path: rel, Err: fmt.Errorf("%w: %s is not a script class", ErrLayout, mn.ClassName)}
	}
	// The file is the manifest key plus this class's own extension. Keys
	// may contain dots, so "A.server.lua" can be a module named "A.server".
	dir, file := path.Split(rel)
	if stem, ok := strings.CutSuffix(file, "."+rule.Extension); !ok || stem != key {
		return nil, &Error{Path: rel, Err: fmt.Errorf("%w: expected file %s.%s", ErrLayout, key, rule.Extension)}
	}

	inst := instance.New(mn.ClassName, key).WithID(rel)
	content, _, err := r.read(rel)
	if err != nil {
		return nil, err
	}
	inst.Set(rule.SourceProperty, value.String(content))

	if err := r.applyMeta(inst, path.Join(dir, key+plan.MetaSuffix)); err != nil {
		return nil, err
	}
	return inst, nil
}

// read returns the file content, or found=false when rel does not exist.
func (r *reader) read(rel string) (string, bool, error) {
	data, err := afero.ReadFile(r.fs, r.abs(rel))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &Error{Path: rel, Err: err}
	}
	r.files++
	return string(data), true, nil
}

func (r *reader) applyMeta(inst *instance.Instance, rel string) error {
	data, found, err := r.read(rel)
	if err != nil || !found {
		return err
	}
	if err := externalize.Validate([]byte(data)); err != nil {
		return &Error{Path: rel, Err: err}
	}
	meta, err := externalize.Unmarshal([]byte(data))
	if err != nil {
		return &Error{Path: rel, Err: err}
	}
	if meta.ClassName != inst.Class {
		return &Error{Path: rel, Err: fmt.Errorf("%w: metadata class %s, manifest class %s", ErrLayout, meta.ClassName, inst.Class)}
	}

	if meta.Name != "" {
		inst.Name = meta.Name
	}
	for k, v := range meta.Properties {
		inst.Set(k, v)
	}
	for k, v := range meta.Attributes {
		inst.SetAttribute(k, v)
	}
	inst.Tags = meta.Tags
	return nil
}
