// Package journal persists run history in a SQLite database.
//
// The journal is optional housekeeping: correctness lives entirely in the
// archive tree and the run summary. Two driver implementations are
// supported, selected at build time:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (-tags cgo_sqlite): mattn/go-sqlite3
package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/FocuswithJustin/CedarVault/core/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	mode           TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL,
	rc             INTEGER NOT NULL,
	full_expected  INTEGER NOT NULL,
	full_ok        INTEGER NOT NULL,
	full_bad       INTEGER NOT NULL,
	incr_expected  INTEGER NOT NULL,
	incr_ok        INTEGER NOT NULL,
	incr_bad       INTEGER NOT NULL,
	other_expected INTEGER NOT NULL,
	other_ok       INTEGER NOT NULL,
	other_bad      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_records (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	source      TEXT NOT NULL,
	destination TEXT NOT NULL,
	category    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);`

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// DriverPackage returns the import path of the active driver.
func DriverPackage() string {
	return driverPackage
}

// Journal is an open run-history database.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if necessary) the journal database at path and
// ensures its schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordRun stores one run and its per-record outcomes in a single
// transaction.
func (j *Journal) RecordRun(runID string, mode engine.Mode, started, finished time.Time, summary *engine.Summary, results []engine.RecordResult) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (
		id, mode, started_at, finished_at, rc,
		full_expected, full_ok, full_bad,
		incr_expected, incr_ok, incr_bad,
		other_expected, other_ok, other_bad
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, mode.String(),
		started.UTC().Format(time.RFC3339), finished.UTC().Format(time.RFC3339),
		summary.RC,
		summary.FullExpected, summary.FullOK, summary.FullBad,
		summary.IncrExpected, summary.IncrOK, summary.IncrBad,
		summary.OtherExpected, summary.OtherOK, summary.OtherBad,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_records
		(run_id, seq, source, destination, category, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range results {
		_, err := stmt.Exec(runID, i, res.Record.Source, res.Record.Destination,
			res.Category.String(), res.Outcome.String(), res.Detail)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// RunEntry is one row of run history.
type RunEntry struct {
	ID         string
	Mode       string
	StartedAt  string
	FinishedAt string
	RC         int
	Expected   int
	OK         int
	Bad        int
}

// ListRuns returns up to limit runs, most recent first.
func (j *Journal) ListRuns(limit int) ([]RunEntry, error) {
	rows, err := j.db.Query(`SELECT id, mode, started_at, finished_at, rc,
		full_expected + incr_expected + other_expected,
		full_ok + incr_ok + other_ok,
		full_bad + incr_bad + other_bad
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.Mode, &e.StartedAt, &e.FinishedAt, &e.RC, &e.Expected, &e.OK, &e.Bad); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordRow is one per-record outcome row of run history.
type RecordRow struct {
	Seq         int
	Source      string
	Destination string
	Category    string
	Outcome     string
	Detail      string
}

// ListRecords returns the per-record outcomes for one run, in plan order.
func (j *Journal) ListRecords(runID string) ([]RecordRow, error) {
	rows, err := j.db.Query(`SELECT seq, source, destination, category, outcome, detail
		FROM run_records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.Seq, &r.Source, &r.Destination, &r.Category, &r.Outcome, &r.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
