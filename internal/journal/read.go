package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is a stored run.
type RunRecord struct {
	ID           string    `json:"id"`
	Input        string    `json:"input"`
	Output       string    `json:"output"`
	ToolVersion  string    `json:"tool_version"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       Status    `json:"status"`
	Planned      int       `json:"planned"`
	Materialized int       `json:"materialized"`
	Failures     int       `json:"failures"`
	Warnings     int       `json:"warnings"`
}

// EventRecord is a stored event.
type EventRecord struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Node   string `json:"node,omitempty"`
	Class  string `json:"class,omitempty"`
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail,omitempty"`
	Count  int    `json:"count,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DiagnosticRecord is a stored report entry.
type DiagnosticRecord struct {
	Seq      int64  `json:"seq"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Node     string `json:"node,omitempty"`
	Path     string `json:"path,omitempty"`
	Property string `json:"property,omitempty"`
	Message  string `json:"message"`
}

const runColumns = `id, input, output, tool_version, started_at, finished_at, status,
	planned, materialized, failures, warnings`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		rec      RunRecord
		started  string
		finished sql.NullString
		status   string
	)
	err := row.Scan(&rec.ID, &rec.Input, &rec.Output, &rec.ToolVersion, &started, &finished, &status,
		&rec.Planned, &rec.Materialized, &rec.Failures, &rec.Warnings)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Status = Status(status)
	if rec.StartedAt, err = parseTime(started); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: started_at: %w", rec.ID, err)
	}
	if finished.Valid {
		if rec.FinishedAt, err = parseTime(finished.String); err != nil {
			return RunRecord{}, fmt.Errorf("run %s: finished_at: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// Runs returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (j *Journal) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns one run.
func (j *Journal) Run(ctx context.Context, id string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return rec, nil
}

// Events returns a run's events in emission order. An empty kind returns
// every kind.
func (j *Journal) Events(ctx context.Context, runID, kind string) ([]EventRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, node, class, path, detail, count, error
		FROM events
		WHERE run_id = ? AND (? = '' OR kind = ?)
		ORDER BY seq ASC
	`, runID, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.Seq, &e.Kind, &e.Node, &e.Class, &e.Path, &e.Detail, &e.Count, &e.Error); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Diagnostics returns a run's report entries: failures, then warnings,
// then notices, each in document order.
func (j *Journal) Diagnostics(ctx context.Context, runID string) ([]DiagnosticRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, code, severity, node, path, property, message
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []DiagnosticRecord{}
	for rows.Next() {
		var d DiagnosticRecord
		if err := rows.Scan(&d.Seq, &d.Code, &d.Severity, &d.Node, &d.Path, &d.Property, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

// Delete removes a run with its events and diagnostics.
func (j *Journal) Delete(ctx context.Context, id string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
