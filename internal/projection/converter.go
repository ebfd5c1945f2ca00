// Package projection turns a decoded instance tree into a project directory:
// one depth-first planning pass, then the writer, then the manifest.
package projection

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/roach88/placesplit/internal/catalog"
	"github.com/roach88/placesplit/internal/diag"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/manifest"
	"github.com/roach88/placesplit/internal/naming"
	"github.com/roach88/placesplit/internal/syncrule"
	"github.com/roach88/placesplit/internal/writer"
)

// DefaultProjectName is used when Options.ProjectName is empty and the
// root instance has no name.
const DefaultProjectName = "project"

// Options configure a Converter. The zero value uses the built-in catalog
// and default naming.
type Options struct {
	// Catalog is the class catalog. Nil means catalog.Builtin.
	Catalog *catalog.Catalog

	// Naming bounds and placeholder for resolved names.
	Naming naming.Options

	// Workers bounds concurrent writes.
	Workers int

	// ProjectName is the manifest name. Empty means the root's display name.
	ProjectName string

	// Sink receives progress and diagnostic events.
	Sink diag.Sink
}

// Converter runs conversions onto one filesystem.
type Converter struct {
	fs          afero.Fs
	driver      *Driver
	writer      *writer.Writer
	projectName string
	sink        diag.Sink
}

// NewConverter validates opts and returns a converter writing to fsys.
func NewConverter(fsys afero.Fs, opts Options) (*Converter, error) {
	if err := opts.Naming.Validate(); err != nil {
		return nil, fmt.Errorf("naming options: %w", err)
	}
	cat := opts.Catalog
	if cat == nil {
		var err error
		if cat, err = catalog.Builtin(); err != nil {
			return nil, fmt.Errorf("load built-in catalog: %w", err)
		}
	}
	sink := opts.Sink
	if sink == nil {
		sink = diag.Discard
	}
	return &Converter{
		fs:          fsys,
		driver:      NewDriver(syncrule.New(cat), opts.Naming, sink),
		writer:      writer.New(fsys, writer.Options{Workers: opts.Workers, Sink: sink}),
		projectName: opts.ProjectName,
		sink:        sink,
	}, nil
}

// Run converts root into a project under outRoot.
//
// The report is always returned. The error is nil on success and the
// report's *diag.RunError otherwise; a partially written root is left as
// is. A cancelled run writes no manifest.
func (c *Converter) Run(ctx context.Context, root *instance.Instance, outRoot string) (*diag.Report, error) {
	report := &diag.Report{Root: outRoot}
	name := c.projectName
	if name == "" {
		name = root.Name
	}
	if name == "" {
		name = DefaultProjectName
	}

	c.sink.Emit(diag.Event{Kind: diag.EventRunStarted, Class: root.Class, Detail: outRoot, Count: instance.Count(root) - 1})
	defer func() {
		c.sink.Emit(diag.Event{Kind: diag.EventRunFinished, Detail: outRoot, Count: report.Materialized, Err: report.Err()})
	}()

	p, err := c.driver.Plan(ctx, root, name, report)
	if err != nil {
		report.Add(diag.NewCancelledError(err))
		return report, report.Err()
	}
	report.Planned = p.Len() - 1

	res := c.writer.Write(ctx, p, outRoot)
	report.Materialized = res.Count()
	for _, f := range res.Failures {
		report.Add(f)
	}
	if res.Cancelled {
		report.Add(diag.NewCancelledError(ctx.Err()))
		return report, report.Err()
	}
	if !res.Materialized(p.Root) {
		return report, report.Err()
	}

	m := manifest.Build(name, p, res.Materialized)
	data, err := m.Marshal()
	if err == nil {
		err = c.writer.WriteFile(filepath.Join(outRoot, manifest.FileName), data)
	}
	if err != nil {
		report.Add(diag.NewWriteError(manifest.FileName, "", err))
		c.sink.Emit(diag.Event{Kind: diag.EventWriteFailed, Path: manifest.FileName, Err: err})
		return report, report.Err()
	}
	report.ManifestWritten = true
	c.sink.Emit(diag.Event{Kind: diag.EventManifestWritten, Path: manifest.FileName, Count: m.Count()})
	return report, report.Err()
}
