// Package journal records conversion runs in a SQLite database.
//
// A run is a row in runs plus its event stream and final report entries.
// The journal is a diag.Sink: attach a Run to the converter and every
// event lands in the database, then Finish stores the report.
//
// # Ordering
//
// Events and diagnostics carry a per-run seq from a logical clock. Reads
// order by seq, never by timestamp. Runs are listed newest first by ID;
// UUIDv7 identifiers sort by creation time.
//
// # Database Configuration
//
//   - WAL mode: history reads while a run is being recorded
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: deleting a run deletes its events
package journal

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - runs, events, diagnostics
const currentSchemaVersion = 1

// Journal is an open run journal.
type Journal struct {
	db  *sql.DB
	ids IDGenerator
	now func() time.Time
}

// Open creates or opens the journal at path, with UUIDv7 run IDs and wall
// clock timestamps.
func Open(path string) (*Journal, error) {
	return OpenWith(path, UUIDv7Generator{}, time.Now)
}

// OpenWith is Open with an explicit ID generator and time source, for
// deterministic tests.
func OpenWith(path string, ids IDGenerator, now func() time.Time) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db, ids: ids, now: now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
