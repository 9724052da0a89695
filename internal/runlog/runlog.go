// Package runlog persists training runs and their per-step metrics in a
// sqlite database. Each run gets a uuid, the motion tag it was trained
// with, and a JSON snapshot of its config; metrics are appended as flat
// (step, name, value) rows so reporting can slice them into series.
package runlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/morph4d/morph4d/internal/monitoring"
	"github.com/morph4d/morph4d/internal/timeutil"
)

// schema.sql contains the SQL statements for creating the run log schema.
// It defines the runs table and the metrics table.
//
//go:embed schema.sql
var schemaSQL string

//go:embed migrations
var migrationFiles embed.FS

// Migrations returns the embedded migration files as a filesystem rooted
// at the migrations directory, suitable for the Migrate* methods.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic("runlog: bad embedded migrations: " + err.Error())
	}
	return sub
}

// DB wraps the run log database. Timestamps come from the injected clock
// so tests can pin them.
type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// NewDB opens (creating if necessary) the run log at path and applies the
// embedded schema.
func NewDB(path string) (*DB, error) {
	return NewDBWithClock(path, timeutil.RealClock{})
}

// NewDBWithClock is NewDB with an explicit clock.
func NewDBWithClock(path string, clock timeutil.Clock) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply run log schema: %w", err)
	}

	monitoring.Logf("initialized run log schema at %s", path)

	return &DB{DB: db, clock: clock}, nil
}

// OpenDB opens the run log at path without applying the schema.
// Use this when migrations manage the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, clock: timeutil.RealClock{}}, nil
}

// Run is one training run.
type Run struct {
	ID         string
	Motion     string
	ConfigJSON string
	StartedAt  int64  // unix nanos
	FinishedAt *int64 // unix nanos, nil while the run is still going
}

// CreateRun inserts a new run with a fresh uuid and returns it.
func (db *DB) CreateRun(motion, configJSON string) (*Run, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	run := &Run{
		ID:         uuid.New().String(),
		Motion:     motion,
		ConfigJSON: configJSON,
		StartedAt:  db.clock.Now().UnixNano(),
	}

	_, err := db.Exec(`
		INSERT INTO runs (run_id, motion, config_json, started_unix_nanos)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Motion, run.ConfigJSON, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// FinishRun stamps the run as finished at the current clock time.
func (db *DB) FinishRun(runID string) error {
	res, err := db.Exec(`
		UPDATE runs SET finished_unix_nanos = ? WHERE run_id = ?
	`, db.clock.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(runID string) (*Run, error) {
	var run Run
	err := db.QueryRow(`
		SELECT run_id, motion, config_json, started_unix_nanos, finished_unix_nanos
		FROM runs WHERE run_id = ?
	`, runID).Scan(&run.ID, &run.Motion, &run.ConfigJSON, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, motion, config_json, started_unix_nanos, finished_unix_nanos
		FROM runs ORDER BY started_unix_nanos DESC, run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Motion, &run.ConfigJSON, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (*Run, error) {
	var run Run
	err := db.QueryRow(`
		SELECT run_id, motion, config_json, started_unix_nanos, finished_unix_nanos
		FROM runs ORDER BY started_unix_nanos DESC, run_id LIMIT 1
	`).Scan(&run.ID, &run.Motion, &run.ConfigJSON, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no runs recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &run, nil
}

// SeriesPoint is one recorded value of a metric.
type SeriesPoint struct {
	Step  int
	Value float64
}

// RecordMetric stores a single metric value for a step.
func (db *DB) RecordMetric(runID string, step int, name string, value float64) error {
	_, err := db.Exec(`
		INSERT INTO metrics (run_id, step, name, value, recorded_unix_nanos)
		VALUES (?, ?, ?, ?, ?)
	`, runID, step, name, value, db.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert metric %s: %w", name, err)
	}
	return nil
}

// RecordMetrics stores all values for one step in a single transaction.
func (db *DB) RecordMetrics(runID string, step int, values map[string]float64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin metrics transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO metrics (run_id, step, name, value, recorded_unix_nanos)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare metric insert: %w", err)
	}
	defer stmt.Close()

	now := db.clock.Now().UnixNano()
	for name, value := range values {
		if _, err := stmt.Exec(runID, step, name, value, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert metric %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// MetricSeries returns every recorded value of the named metric for a run,
// ordered by step.
func (db *DB) MetricSeries(runID, name string) ([]SeriesPoint, error) {
	rows, err := db.Query(`
		SELECT step, value FROM metrics
		WHERE run_id = ? AND name = ?
		ORDER BY step
	`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric %s: %w", name, err)
	}
	defer rows.Close()

	var series []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric %s: %w", name, err)
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// MetricNames returns the distinct metric names recorded for a run, sorted.
func (db *DB) MetricNames(runID string) ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT name FROM metrics WHERE run_id = ? ORDER BY name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan metric name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
