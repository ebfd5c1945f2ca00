// Package catalog holds the per-class lookup table that drives projection:
// how each class is represented on disk and which property values are
// defaults that never need to be externalized.
//
// The table is data, not code. The built-in catalog is a CUE document
// embedded in the binary; users extend it with additional CUE files that
// are unified with the schema and the built-ins. Unification means an
// extension can add classes and defaults but cannot silently contradict a
// built-in entry: a conflicting value is a load error.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/placesplit/internal/value"
)

//go:embed schema.cue
var schemaCUE []byte

//go:embed classes.cue
var classesCUE []byte

// Kind is the catalog's coarse classification of a class.
type Kind string

const (
	KindScript    Kind = "script"
	KindContainer Kind = "container"
	KindInstance  Kind = "instance"
)

// RunContext says where a script class executes.
type RunContext string

const (
	RunServer RunContext = "server"
	RunClient RunContext = "client"
	RunModule RunContext = "module"
)

// DefaultSourceProperty is the content property of script classes that do
// not name one explicitly.
const DefaultSourceProperty = "Source"

// Class is one catalog entry.
type Class struct {
	Name           string
	Kind           Kind
	RunContext     RunContext
	SourceProperty string
	Defaults       map[string]value.Value
}

// Default returns the default value of the named property, if the catalog
// knows one.
func (c *Class) Default(property string) (value.Value, bool) {
	v, ok := c.Defaults[property]
	return v, ok
}

// Catalog is an immutable class table. Safe for concurrent use.
type Catalog struct {
	classes map[string]*Class
}

// Lookup returns the entry for a class identifier.
func (c *Catalog) Lookup(name string) (*Class, bool) {
	cls, ok := c.classes[name]
	return cls, ok
}

// Len returns the number of classes.
func (c *Catalog) Len() int {
	return len(c.classes)
}

// Classes returns all entries sorted by name.
func (c *Catalog) Classes() []*Class {
	out := make([]*Class, 0, len(c.classes))
	for _, cls := range c.classes {
		out = append(out, cls)
	}
	slices.SortFunc(out, func(a, b *Class) int {
		return value.CompareUTF16(a.Name, b.Name)
	})
	return out
}

// Source is one CUE document contributing to a catalog.
type Source struct {
	Name string
	Data []byte
}

// Error is a catalog load failure with the CUE position when available.
type Error struct {
	Class   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	prefix := "catalog"
	if e.Class != "" {
		prefix = fmt.Sprintf("catalog class %s", e.Class)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

var builtin = sync.OnceValues(func() (*Catalog, error) {
	return Compile()
})

// Builtin returns the embedded catalog. It is parsed once per process.
func Builtin() (*Catalog, error) {
	return builtin()
}

// Load returns the built-in catalog extended by the given CUE files.
func Load(paths ...string) (*Catalog, error) {
	if len(paths) == 0 {
		return Builtin()
	}
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		sources = append(sources, Source{Name: p, Data: data})
	}
	return Compile(sources...)
}

// Compile builds a catalog from the schema, the built-in classes and any
// extra sources, unified in that order.
func Compile(extra ...Source) (*Catalog, error) {
	ctx := cuecontext.New()

	v := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	v = v.Unify(ctx.CompileBytes(classesCUE, cue.Filename("classes.cue")))
	for _, src := range extra {
		v = v.Unify(ctx.CompileBytes(src.Data, cue.Filename(src.Name)))
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	classesVal := v.LookupPath(cue.ParsePath("classes"))
	if err := classesVal.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := classesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{classes: map[string]*Class{}}
	for iter.Next() {
		cls, err := decodeClass(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		cat.classes[cls.Name] = cls
	}
	return cat, nil
}

func decodeClass(name string, v cue.Value) (*Class, error) {
	cls := &Class{Name: name, Defaults: map[string]value.Value{}}

	kind, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	cls.Kind = Kind(kind)

	if rc := v.LookupPath(cue.ParsePath("runContext")); rc.Exists() {
		s, err := rc.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		cls.RunContext = RunContext(s)
	}
	if src := v.LookupPath(cue.ParsePath("source")); src.Exists() {
		s, err := src.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		cls.SourceProperty = s
	}

	if cls.Kind == KindScript {
		if cls.RunContext == "" {
			return nil, &Error{Class: name, Message: "script classes require runContext", Pos: v.Pos()}
		}
		if cls.SourceProperty == "" {
			cls.SourceProperty = DefaultSourceProperty
		}
	}

	defaults := v.LookupPath(cue.ParsePath("defaults"))
	if !defaults.Exists() {
		return cls, nil
	}
	iter, err := defaults.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		data, err := iter.Value().MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}
		dv, err := value.UnmarshalTagged(data)
		if err != nil {
			return nil, &Error{Class: name, Message: fmt.Sprintf("default %s: %v", iter.Label(), err), Pos: iter.Value().Pos()}
		}
		if u, ok := dv.(value.Unsupported); ok {
			return nil, &Error{Class: name, Message: fmt.Sprintf("default %s: unknown type %q", iter.Label(), u.TypeName), Pos: iter.Value().Pos()}
		}
		cls.Defaults[iter.Label()] = dv
	}
	return cls, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Message: first.Error()}
}
