// Package writer materializes a write plan on an afero filesystem.
//
// Nodes are written one depth level at a time. Within a level the work
// runs on a bounded errgroup, and the level is joined before the next
// starts, so a directory always exists before anything inside it is
// attempted. A failed node is recorded and its subtree skipped; siblings
// are unaffected. Results are indexed by the node's preorder position, so
// failures come back in document order regardless of scheduling.
//
// Files are written to a temporary name in the destination directory and
// renamed into place. Re-running into the same root replaces the files the
// plan names and leaves every other file alone.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/placesplit/internal/diag"
	"github.com/roach88/placesplit/internal/plan"
)

// DefaultWorkers bounds concurrent writes when Options.Workers is unset.
const DefaultWorkers = 8

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Options configure a Writer.
type Options struct {
	Workers int
	Sink    diag.Sink
}

// Writer owns the output filesystem for the duration of a run.
type Writer struct {
	fs      afero.Fs
	workers int
	sink    diag.Sink
}

// New returns a writer over fsys.
func New(fsys afero.Fs, opts Options) *Writer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Sink == nil {
		opts.Sink = diag.Discard
	}
	return &Writer{fs: fsys, workers: opts.Workers, sink: opts.Sink}
}

// Fs returns the underlying filesystem.
func (w *Writer) Fs() afero.Fs {
	return w.fs
}

// Result is the outcome of Write.
type Result struct {
	// Written is indexed by plan.Node.Seq.
	Written []bool

	// Failures are the failed nodes, in document order.
	Failures []*diag.Error

	// Cancelled is true when the context ended before every node was
	// attempted.
	Cancelled bool
}

// Materialized reports whether n was written.
func (r *Result) Materialized(n *plan.Node) bool {
	return n.Seq < len(r.Written) && r.Written[n.Seq]
}

// Count returns the number of written nodes, the root excluded.
func (r *Result) Count() int {
	total := 0
	for seq, ok := range r.Written {
		if ok && seq > 0 {
			total++
		}
	}
	return total
}

type nodeState int

const (
	statePending nodeState = iota
	stateWritten
	stateFailed
	stateSkipped
)

// Write materializes p under root. Per-node failures end up in the result,
// never in a returned error; a cancelled context stops further writes and
// sets Result.Cancelled.
func (w *Writer) Write(ctx context.Context, p *plan.Plan, root string) *Result {
	n := p.Len()
	states := make([]nodeState, n)
	errs := make([]*diag.Error, n)
	res := &Result{Written: make([]bool, n)}

	for _, level := range p.Levels() {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		var g errgroup.Group
		g.SetLimit(w.workers)
		for _, node := range level {
			if !node.IsRoot() && states[node.Parent.Seq] != stateWritten {
				states[node.Seq] = stateSkipped
				continue
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				if err := w.writeNode(root, node); err != nil {
					errs[node.Seq] = err
					states[node.Seq] = stateFailed
					return nil
				}
				states[node.Seq] = stateWritten
				return nil
			})
		}
		_ = g.Wait()

		w.emitLevel(level, states, errs)
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
	}

	for seq, st := range states {
		res.Written[seq] = st == stateWritten
		if errs[seq] != nil {
			res.Failures = append(res.Failures, errs[seq])
		}
	}
	return res
}

func (w *Writer) emitLevel(level []*plan.Node, states []nodeState, errs []*diag.Error) {
	for _, node := range level {
		ev := diag.Event{Node: node.InstancePath(), Class: node.Class, Path: node.Path()}
		switch states[node.Seq] {
		case stateWritten:
			ev.Kind = diag.EventNodeWritten
		case stateFailed:
			ev.Kind = diag.EventWriteFailed
			ev.Path = errs[node.Seq].Path
			ev.Err = errs[node.Seq].Err
		case stateSkipped:
			ev.Kind = diag.EventNodeSkipped
			ev.Detail = "parent not written"
		default:
			continue
		}
		w.sink.Emit(ev)
	}
}

// writeNode creates one entity: its directory if it is one, then its
// source file, then its metadata sidecar.
func (w *Writer) writeNode(root string, n *plan.Node) *diag.Error {
	fail := func(rel string, err error) *diag.Error {
		return diag.NewWriteError(rel, n.InstancePath(), err)
	}

	if n.IsDir() {
		if err := w.fs.MkdirAll(abs(root, n.Path()), dirPerm); err != nil {
			return fail(n.Path(), err)
		}
	}
	if n.HasSource() {
		if err := w.WriteFile(abs(root, n.SourcePath()), n.Content); err != nil {
			return fail(n.SourcePath(), err)
		}
	}
	if n.Meta != nil {
		data, err := n.Meta.Marshal()
		if err != nil {
			return fail(n.MetaPath(), fmt.Errorf("encode metadata: %w", err))
		}
		if err := w.WriteFile(abs(root, n.MetaPath()), data); err != nil {
			return fail(n.MetaPath(), err)
		}
	}
	return nil
}

// WriteFile replaces name atomically: data goes to a temporary file in the
// same directory which is then renamed over name.
func (w *Writer) WriteFile(name string, data []byte) (err error) {
	dir, base := filepath.Split(name)
	tmp, err := afero.TempFile(w.fs, dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = w.fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = w.fs.Chmod(tmpName, filePerm); err != nil {
		return err
	}
	return w.fs.Rename(tmpName, name)
}

func abs(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
