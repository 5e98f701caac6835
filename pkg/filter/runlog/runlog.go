// Package runlog persists filter run records to SQLite.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openedx/openedx-filters/pkg/filter"
)

const schema = `
CREATE TABLE IF NOT EXISTS filter_runs (
	id          TEXT PRIMARY KEY,
	filter_type TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	stopped_by  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	step_count  INTEGER NOT NULL DEFAULT 0,
	duration_us INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_filter_runs_type_created
	ON filter_runs(filter_type, created_at DESC);
`

// Store is a SQLite-backed run recorder.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the run log database at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run log database: %w", err)
	}

	// modernc sqlite serializes access per connection; a single connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run log schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements filter.RunRecorder.
func (s *Store) Record(ctx context.Context, rec filter.RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_runs (id, filter_type, outcome, stopped_by, error, step_count, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.FilterType,
		string(rec.Outcome),
		rec.StoppedBy,
		rec.Error,
		rec.StepCount,
		rec.Duration.Microseconds(),
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// Recent returns the most recent run records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]filter.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filter_type, outcome, stopped_by, error, step_count, duration_us, created_at
		FROM filter_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var records []filter.RunRecord
	for rows.Next() {
		var rec filter.RunRecord
		var outcome string
		var durationUS int64
		if err := rows.Scan(&rec.ID, &rec.FilterType, &outcome, &rec.StoppedBy, &rec.Error, &rec.StepCount, &durationUS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.Outcome = filter.RunOutcome(outcome)
		rec.Duration = time.Duration(durationUS) * time.Microsecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ filter.RunRecorder = (*Store)(nil)
