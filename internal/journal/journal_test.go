package journal

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placesplit/internal/diag"
	"github.com/roach88/placesplit/internal/projection"
	"github.com/roach88/placesplit/internal/testutil"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func openTest(t *testing.T, ids ...string) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenWith(path, testutil.NewFixedIDs(ids...), testutil.NewStepClock(epoch, time.Second).Now)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenCreatesSchema(t *testing.T) {
	j := openTest(t)

	for _, table := range []string{"runs", "events", "diagnostics"} {
		var name string
		err := j.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	var version int
	require.NoError(t, j.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, j.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, j.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for range 3 {
		j, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, j.Close())
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestRecordRun(t *testing.T) {
	j := openTest(t, "run-1")
	ctx := context.Background()

	run, err := j.BeginRun(ctx, RunInfo{Input: "game.yaml", Output: "out/game", ToolVersion: "test"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)

	run.Emit(diag.Event{Kind: diag.EventRunStarted, Detail: "out/game", Count: 2})
	run.Emit(diag.Event{Kind: diag.EventNodeWritten, Node: "A", Class: "Folder", Path: "A"})
	run.Emit(diag.Event{Kind: diag.EventWriteFailed, Node: "B", Path: "B", Err: fs.ErrPermission})
	require.NoError(t, run.Err())

	report := &diag.Report{Planned: 2, Materialized: 1}
	report.Add(diag.NewWriteError("B", "B", fs.ErrPermission))
	report.Add(diag.NewInvalidPropertyError("A", "Size", fs.ErrInvalid))
	report.Add(diag.NewFallbackNotice("A", "Gizmo"))
	require.NoError(t, run.Finish(report))

	rec, err := j.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunRecord{
		ID:           "run-1",
		Input:        "game.yaml",
		Output:       "out/game",
		ToolVersion:  "test",
		StartedAt:    epoch,
		FinishedAt:   epoch.Add(time.Second),
		Status:       StatusFailed,
		Planned:      2,
		Materialized: 1,
		Failures:     1,
		Warnings:     1,
	}, rec)

	events, err := j.Events(ctx, "run-1", "")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, "write_failed", events[2].Kind)
	assert.Equal(t, fs.ErrPermission.Error(), events[2].Error)

	written, err := j.Events(ctx, "run-1", string(diag.EventNodeWritten))
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "A", written[0].Path)

	diags, err := j.Diagnostics(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, diags, 3)
	assert.Equal(t, []string{"fatal", "warning", "info"}, []string{diags[0].Severity, diags[1].Severity, diags[2].Severity})
	assert.Equal(t, string(diag.CodeWriteFailure), diags[0].Code)
	assert.Equal(t, "Size", diags[1].Property)
}

func TestRunsNewestFirst(t *testing.T) {
	j := openTest(t, "0001", "0002", "0003")
	ctx := context.Background()

	for range 3 {
		run, err := j.BeginRun(ctx, RunInfo{Input: "in", Output: "out"})
		require.NoError(t, err)
		require.NoError(t, run.Finish(&diag.Report{}))
	}

	runs, err := j.Runs(ctx, 0)
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
		assert.Equal(t, StatusSucceeded, r.Status)
	}
	assert.Equal(t, []string{"0003", "0002", "0001"}, ids)

	runs, err = j.Runs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRecordConversion(t *testing.T) {
	j := openTest(t, "run-1")
	ctx := context.Background()

	run, err := j.BeginRun(ctx, RunInfo{Input: "place.yaml", Output: "/out/Place"})
	require.NoError(t, err)

	fsys := testutil.NewFailingFs(afero.NewMemMapFs())
	fsys.FailUnder(filepath.Join("/out/Place", "Workspace", "Tree"), fs.ErrPermission)
	rec := &diag.Recorder{}
	c, err := projection.NewConverter(fsys, projection.Options{Sink: diag.MultiSink(run, rec)})
	require.NoError(t, err)

	report, runErr := c.Run(ctx, testutil.SamplePlace(), "/out/Place")
	require.Error(t, runErr)
	require.NoError(t, run.Finish(report))

	stored, err := j.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, 22, stored.Planned)
	assert.Equal(t, 19, stored.Materialized)

	events, err := j.Events(ctx, "run-1", "")
	require.NoError(t, err)
	require.Len(t, events, len(rec.Events()))
	for i, e := range rec.Events() {
		assert.Equal(t, string(e.Kind), events[i].Kind)
		assert.Equal(t, e.Path, events[i].Path)
	}

	skipped, err := j.Events(ctx, "run-1", string(diag.EventNodeSkipped))
	require.NoError(t, err)
	assert.Len(t, skipped, 2)

	diags, err := j.Diagnostics(ctx, "run-1")
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.Equal(t, "Workspace/Tree", diags[0].Path)
}

func TestCancelledRunIsRecorded(t *testing.T) {
	j := openTest(t, "run-1")
	ctx, cancel := context.WithCancel(context.Background())

	run, err := j.BeginRun(ctx, RunInfo{Input: "in", Output: "out"})
	require.NoError(t, err)
	cancel()

	run.Emit(diag.Event{Kind: diag.EventRunFinished})
	report := &diag.Report{}
	report.Add(diag.NewCancelledError(context.Canceled))
	require.NoError(t, run.Finish(report))

	stored, err := j.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestFinishTwice(t *testing.T) {
	j := openTest(t, "run-1")
	run, err := j.BeginRun(context.Background(), RunInfo{})
	require.NoError(t, err)
	require.NoError(t, run.Finish(&diag.Report{}))

	err = run.Finish(&diag.Report{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")

	run.Emit(diag.Event{Kind: diag.EventRunFinished})
	assert.NoError(t, run.Err())
}

func TestDeleteCascades(t *testing.T) {
	j := openTest(t, "run-1")
	ctx := context.Background()

	run, err := j.BeginRun(ctx, RunInfo{})
	require.NoError(t, err)
	run.Emit(diag.Event{Kind: diag.EventRunStarted})
	report := &diag.Report{}
	report.Add(diag.NewFallbackNotice("A", "Gizmo"))
	require.NoError(t, run.Finish(report))

	require.NoError(t, j.Delete(ctx, "run-1"))

	var n int
	require.NoError(t, j.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, j.db.QueryRow("SELECT COUNT(*) FROM diagnostics").Scan(&n))
	assert.Zero(t, n)

	_, err = j.Run(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, j.Delete(ctx, "run-1"), ErrRunNotFound)
}
