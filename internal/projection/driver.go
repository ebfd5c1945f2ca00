package projection

import (
	"context"
	"slices"

	"github.com/roach88/placesplit/internal/diag"
	"github.com/roach88/placesplit/internal/externalize"
	"github.com/roach88/placesplit/internal/instance"
	"github.com/roach88/placesplit/internal/manifest"
	"github.com/roach88/placesplit/internal/naming"
	"github.com/roach88/placesplit/internal/plan"
	"github.com/roach88/placesplit/internal/syncrule"
)

// Driver turns an instance tree into a write plan in one depth-first pass.
//
// Each child is classified, named and externalized in document order
// before its own children are visited. A directory's name table lives
// exactly as long as the loop over its children. No node is visited twice.
type Driver struct {
	classifier *syncrule.Classifier
	naming     naming.Options
	sink       diag.Sink
}

// NewDriver returns a driver. A nil sink discards events.
func NewDriver(classifier *syncrule.Classifier, opts naming.Options, sink diag.Sink) *Driver {
	if sink == nil {
		sink = diag.Discard
	}
	return &Driver{classifier: classifier, naming: opts, sink: sink}
}

// reservedIn lists the names no child may take in a directory.
func reservedIn(isRoot bool) []string {
	names := []string{plan.InitName, plan.InitMetaFile}
	for _, ext := range syncrule.Extensions {
		names = append(names, plan.InitFile(ext))
	}
	names = append(names, manifest.ReservedKeys...)
	if isRoot {
		names = append(names, manifest.FileName)
	}
	return names
}

// Plan builds the write plan for root. The root instance becomes the output
// root directory; its display name is kept in metadata when it differs
// from projectName.
//
// Non-fatal conditions and per-node failures go to report. The returned
// error is non-nil only when ctx ends, in which case the plan is
// incomplete and nil is returned.
func (d *Driver) Plan(ctx context.Context, root *instance.Instance, projectName string, report *diag.Report) (*plan.Plan, error) {
	rule := d.classifier.Classify(root.Class, true)
	if rule.Fallback {
		d.fallback(report, "", root.Class)
	}

	ext := externalize.Externalize(externalize.Request{
		Instance:       root,
		Class:          rule.Class,
		SourceProperty: rule.SourceProperty,
		ResolvedName:   projectName,
	})
	d.dropped(report, "", root.Class, ext.Dropped)

	rootNode := &plan.Node{
		Kind:      rule.Kind,
		Extension: rule.Extension,
		Class:     root.Class,
		Content:   ext.Content,
		Meta:      ext.Meta,
		Source:    root,
	}
	d.sink.Emit(diag.Event{Kind: diag.EventNodePlanned, Class: root.Class, Path: rootNode.Path()})

	if err := d.planChildren(ctx, rootNode, root, nil, report); err != nil {
		return nil, err
	}

	p := plan.New(rootNode)
	d.resolveRefs(p, report)
	return p, nil
}

func (d *Driver) planChildren(ctx context.Context, parent *plan.Node, inst *instance.Instance, path []string, report *diag.Report) error {
	scope := naming.NewScope(d.naming, reservedIn(parent.IsRoot())...)

	for _, child := range inst.Children {
		if err := ctx.Err(); err != nil {
			return err
		}

		childPath := append(slices.Clip(path), child.Name)
		name := instance.FullName(childPath)

		rule := d.classifier.Classify(child.Class, child.HasChildren())
		if rule.Fallback {
			d.fallback(report, name, child.Class)
		}

		var companions func(string) []string
		if rule.Kind == plan.SourceFile {
			ext := rule.Extension
			companions = func(n string) []string {
				return []string{n + "." + ext, n + plan.MetaSuffix}
			}
		}
		res, err := scope.ClaimWith(child.Name, companions)
		if err != nil {
			report.Add(diag.NewCollisionError(name, parent.Path(), child.Name, err))
			d.sink.Emit(diag.Event{Kind: diag.EventNodeSkipped, Node: name, Class: child.Class, Path: parent.Path(), Detail: "name collision unresolved", Err: err})
			continue
		}

		ext := externalize.Externalize(externalize.Request{
			Instance:       child,
			Class:          rule.Class,
			SourceProperty: rule.SourceProperty,
			ResolvedName:   res.Name,
		})
		d.dropped(report, name, child.Class, ext.Dropped)

		node := &plan.Node{
			Kind:      rule.Kind,
			Name:      res.Name,
			Extension: rule.Extension,
			Class:     child.Class,
			Content:   ext.Content,
			Meta:      ext.Meta,
			Parent:    parent,
			Source:    child,
		}
		parent.Children = append(parent.Children, node)

		if res.Collided() {
			d.sink.Emit(diag.Event{Kind: diag.EventNameCollision, Node: name, Class: child.Class, Path: node.Path(), Detail: child.Name})
		}
		d.sink.Emit(diag.Event{Kind: diag.EventNodePlanned, Node: name, Class: child.Class, Path: node.Path()})

		if node.IsDir() {
			if err := d.planChildren(ctx, node, child, childPath, report); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveRefs points every reference at its target's layout path. The
// plan must be complete: references may point forward in document order.
func (d *Driver) resolveRefs(p *plan.Plan, report *diag.Report) {
	byID := map[string]*plan.Node{}
	for _, n := range p.Nodes() {
		if id := n.Source.ID; id != "" {
			if _, seen := byID[id]; !seen {
				byID[id] = n
			}
		}
	}
	resolve := func(id string) (string, bool) {
		n, ok := byID[id]
		if !ok {
			return "", false
		}
		return n.Path(), true
	}

	for _, n := range p.Nodes() {
		if n.Meta == nil {
			continue
		}
		dropped := n.Meta.ResolveRefs(resolve)
		if len(dropped) > 0 {
			d.dropped(report, n.InstancePath(), n.Class, dropped)
		}
		if n.Meta.Empty() {
			n.Meta = nil
		}
	}
}

func (d *Driver) fallback(report *diag.Report, name, class string) {
	report.Add(diag.NewFallbackNotice(name, class))
	d.sink.Emit(diag.Event{Kind: diag.EventClassFallback, Node: name, Class: class})
}

func (d *Driver) dropped(report *diag.Report, name, class string, dropped []externalize.Dropped) {
	for _, dr := range dropped {
		report.Add(diag.NewInvalidPropertyError(name, dr.Label(), dr.Err))
		d.sink.Emit(diag.Event{Kind: diag.EventPropertyOmitted, Node: name, Class: class, Detail: dr.Label(), Err: dr.Err})
	}
}
