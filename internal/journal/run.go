package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/roach88/placesplit/internal/diag"
)

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RunInfo describes a run at its start.
type RunInfo struct {
	Input       string
	Output      string
	ToolVersion string
}

// Run records one conversion. It is a diag.Sink.
//
// Everything a Run writes goes through one transaction, committed by
// Finish. A run that is never finished leaves no trace.
//
// Thread-safety: Emit is safe for concurrent use.
type Run struct {
	ID string

	j     *Journal
	ctx   context.Context
	clock seqClock

	mu  sync.Mutex
	tx  *sql.Tx
	err error
}

// BeginRun inserts a running run and returns its recorder. Cancelling ctx
// does not abort the recording, so a cancelled conversion is still
// journaled.
func (j *Journal) BeginRun(ctx context.Context, info RunInfo) (*Run, error) {
	ctx = context.WithoutCancel(ctx)
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	id := j.ids.Generate()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input, output, tool_version, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, info.Input, info.Output, info.ToolVersion, formatTime(j.now()), string(StatusRunning))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &Run{ID: id, j: j, ctx: ctx, tx: tx}, nil
}

// Emit stores e. The first failure is kept and returned by Err and
// Finish; later events are dropped.
func (r *Run) Emit(e diag.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.tx == nil {
		return
	}

	var errText string
	if e.Err != nil {
		errText = e.Err.Error()
	}
	_, err := r.tx.ExecContext(r.ctx, `
		INSERT INTO events (run_id, seq, kind, node, class, path, detail, count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.clock.next(), string(e.Kind), e.Node, e.Class, e.Path, e.Detail, e.Count, errText)
	if err != nil {
		r.err = fmt.Errorf("record event %s: %w", e.Kind, err)
	}
}

// Err returns the first recording failure.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Finish stores the report and commits the run. On a recording failure
// the run is rolled back and the failure returned.
func (r *Run) Finish(report *diag.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tx == nil {
		return fmt.Errorf("finish run %s: already finished", r.ID)
	}
	tx := r.tx
	r.tx = nil

	if r.err != nil {
		_ = tx.Rollback()
		return r.err
	}
	if err := r.finish(tx, report); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run %s: commit: %w", r.ID, err)
	}
	return nil
}

func (r *Run) finish(tx *sql.Tx, report *diag.Report) error {
	var seq int64
	for _, group := range [][]*diag.Error{report.Failures, report.Warnings, report.Notices} {
		for _, d := range group {
			seq++
			_, err := tx.ExecContext(r.ctx, `
				INSERT INTO diagnostics (run_id, seq, code, severity, node, path, property, message)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, r.ID, seq, string(d.Code), d.Severity().String(), d.Node, d.Path, d.Property, d.Error())
			if err != nil {
				return fmt.Errorf("record diagnostic: %w", err)
			}
		}
	}

	_, err := tx.ExecContext(r.ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, planned = ?, materialized = ?, failures = ?, warnings = ?
		WHERE id = ?
	`, formatTime(r.j.now()), string(statusOf(report)), report.Planned, report.Materialized,
		len(report.Failures), len(report.Warnings), r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func statusOf(report *diag.Report) Status {
	switch {
	case report.Cancelled():
		return StatusCancelled
	case report.Failed():
		return StatusFailed
	}
	return StatusSucceeded
}
