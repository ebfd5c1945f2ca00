// Package syncrule maps a class identifier to its filesystem representation.
//
// Classification is a pure function of the class identifier and whether the
// node has children. It never reads property values or the filesystem. It
// is total: a class the catalog does not know becomes a plain directory.
package syncrule

import (
	"github.com/roach88/placesplit/internal/catalog"
	"github.com/roach88/placesplit/internal/plan"
)

// Script file extensions, without the leading dot.
const (
	ExtServer = "server.lua"
	ExtClient = "client.lua"
	ExtModule = "lua"
)

// Extensions lists every script extension.
var Extensions = []string{ExtServer, ExtClient, ExtModule}

// Extension returns the script extension for a run context.
func Extension(rc catalog.RunContext) string {
	switch rc {
	case catalog.RunServer:
		return ExtServer
	case catalog.RunClient:
		return ExtClient
	default:
		return ExtModule
	}
}

// Rule is the classification of one node.
type Rule struct {
	Kind plan.Kind

	// Extension is set for SourceFile and DirectoryWithInit.
	Extension string

	// SourceProperty names the property holding the primary content.
	SourceProperty string

	// Class is the catalog entry, nil when the class is unknown.
	Class *catalog.Class

	// Fallback is true when the class had no catalog entry.
	Fallback bool
}

// Classifier classifies against one catalog. Safe for concurrent use.
type Classifier struct {
	catalog *catalog.Catalog
}

// New returns a classifier over cat.
func New(cat *catalog.Catalog) *Classifier {
	return &Classifier{catalog: cat}
}

// Catalog returns the catalog the classifier consults.
func (c *Classifier) Catalog() *catalog.Catalog {
	return c.catalog
}

// Classify returns the representation for a class. Script classes become
// a single file without children and a directory with an init file with
// them; containers and instances become plain directories.
func (c *Classifier) Classify(class string, hasChildren bool) Rule {
	cls, ok := c.catalog.Lookup(class)
	if !ok {
		return Rule{Kind: plan.PlainDirectory, Fallback: true}
	}

	switch cls.Kind {
	case catalog.KindScript:
		r := Rule{
			Kind:           plan.SourceFile,
			Extension:      Extension(cls.RunContext),
			SourceProperty: cls.SourceProperty,
			Class:          cls,
		}
		if hasChildren {
			r.Kind = plan.DirectoryWithInit
		}
		return r
	default:
		return Rule{Kind: plan.PlainDirectory, Class: cls}
	}
}
