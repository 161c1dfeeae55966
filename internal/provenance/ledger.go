// Package provenance keeps a sqlite ledger of pipeline runs, one row per
// invocation, for operational review of what was produced when and from
// what.
package provenance

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/terrascope-data/gridded.report/internal/pipeline"
)

// Ledger records pipeline run summaries in a sqlite database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id          INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id          TEXT,
			granule_id      TEXT,
			orbit           BIGINT,
			scene           BIGINT,
			strategy        TEXT,
			outcome         TEXT,
			reason          TEXT,
			started         TIMESTAMP,
			duration_ms     BIGINT,
			index_builds    BIGINT,
			index_loads     BIGINT,
			index_memo_hits BIGINT
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run ledger %s: %w", path, err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// RecordRun inserts one run summary row.
func (l *Ledger) RecordRun(s pipeline.RunSummary) error {
	_, err := l.db.Exec(`
		INSERT INTO runs (
			job_id, granule_id, orbit, scene, strategy, outcome, reason,
			started, duration_ms, index_builds, index_loads, index_memo_hits
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.JobID, s.GranuleID, s.Orbit, s.Scene, s.Strategy, s.Outcome, s.Reason,
		s.Started, s.Duration.Milliseconds(), s.IndexBuilds, s.IndexLoads, s.IndexMemoHits,
	)
	if err != nil {
		return fmt.Errorf("failed to record run for %s: %w", s.GranuleID, err)
	}
	return nil
}

// Runs returns the recorded summaries for an orbit/scene pair, newest
// first.
func (l *Ledger) Runs(orbit, scene int) ([]pipeline.RunSummary, error) {
	rows, err := l.db.Query(`
		SELECT job_id, granule_id, orbit, scene, strategy, outcome, reason,
			started, index_builds, index_loads, index_memo_hits
		FROM runs WHERE orbit = ? AND scene = ?
		ORDER BY run_id DESC`, orbit, scene)
	if err != nil {
		return nil, fmt.Errorf("failed to query run ledger: %w", err)
	}
	defer rows.Close()

	var out []pipeline.RunSummary
	for rows.Next() {
		var s pipeline.RunSummary
		if err := rows.Scan(&s.JobID, &s.GranuleID, &s.Orbit, &s.Scene, &s.Strategy,
			&s.Outcome, &s.Reason, &s.Started, &s.IndexBuilds, &s.IndexLoads, &s.IndexMemoHits); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
