package diag

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// EventKind identifies a diagnostic event.
type EventKind string

const (
	EventRunStarted      EventKind = "run_started"
	EventNodePlanned     EventKind = "node_planned"
	EventNameCollision   EventKind = "name_collision"
	EventPropertyOmitted EventKind = "property_omitted"
	EventClassFallback   EventKind = "class_fallback"
	EventNodeWritten     EventKind = "node_written"
	EventWriteFailed     EventKind = "write_failed"
	EventNodeSkipped     EventKind = "node_skipped"
	EventManifestWritten EventKind = "manifest_written"
	EventRunFinished     EventKind = "run_finished"
)

// Event is one progress or diagnostic notification.
type Event struct {
	Kind EventKind

	// Node is the dotted instance path.
	Node string

	// Class is the instance's class.
	Class string

	// Path is the layout path relative to the output root.
	Path string

	// Detail carries kind-specific text: the proposed name of a collision,
	// the property of an omission, the run root of run events.
	Detail string

	// Count carries kind-specific numbers: total nodes on run_started,
	// materialized nodes on run_finished.
	Count int

	// Err is set on failure events.
	Err error
}

// Sink receives events. The projection emits from a single goroutine, so
// implementations need not be safe for concurrent use unless they are
// shared between runs.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) {
	f(e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type multiSink []Sink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// MultiSink fans events out to every non-nil sink in order.
func MultiSink(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Filter returns the recorded events of one kind.
func (r *Recorder) Filter(kind EventKind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// SlogSink writes events as structured log records.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink logging to logger, or to slog.Default when
// logger is nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit logs e. Per-node progress is debug, dropped data and fallbacks are
// warnings, failures are errors.
func (s *SlogSink) Emit(e Event) {
	level := slog.LevelInfo
	switch e.Kind {
	case EventNodePlanned, EventNodeWritten:
		level = slog.LevelDebug
	case EventPropertyOmitted, EventClassFallback, EventNodeSkipped:
		level = slog.LevelWarn
	case EventWriteFailed:
		level = slog.LevelError
	}

	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 6)
	if e.Node != "" {
		attrs = append(attrs, slog.String("node", e.Node))
	}
	if e.Class != "" {
		attrs = append(attrs, slog.String("class", e.Class))
	}
	if e.Path != "" {
		attrs = append(attrs, slog.String("path", e.Path))
	}
	if e.Detail != "" {
		attrs = append(attrs, slog.String("detail", e.Detail))
	}
	if e.Count != 0 {
		attrs = append(attrs, slog.Int("count", e.Count))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	s.logger.LogAttrs(ctx, level, string(e.Kind), attrs...)
}
