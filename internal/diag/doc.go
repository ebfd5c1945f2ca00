// Package diag carries the diagnostics of a conversion run: typed errors
// with stable codes, progress events, and the final report.
//
// The projection core never logs directly. It emits Events into a Sink the
// caller supplies and collects Errors into a Report. Sinks exist for
// structured logging (SlogSink), tests (Recorder) and fan-out (MultiSink);
// the journal package persists events to SQLite.
//
// Error codes and their effect on a run:
//
//	NAME_COLLISION_UNRESOLVED   fatal for the node, siblings continue
//	IO_WRITE_FAILURE            fatal for the subtree, siblings continue
//	CANCELLED                   fatal for the run, no manifest is written
//	INVALID_PROPERTY_VALUE      warning, the property is dropped
//	UNSUPPORTED_CLASS_FALLBACK  informational
package diag
