package bench

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound indicates the requested benchmark run doesn't exist.
var ErrRunNotFound = errors.New("benchmark run not found")

// Store keeps benchmark reports in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Summary is a stored report without its samples.
type Summary struct {
	ID              string
	Name            string
	StartedAt       time.Time
	Iterations      int
	Parallel        int
	StackDepthLimit int
	Min             time.Duration
	Max             time.Duration
	Mean            time.Duration
	Resumes         int
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	started_at        INTEGER NOT NULL,
	warmup            INTEGER NOT NULL,
	iterations        INTEGER NOT NULL,
	parallel          INTEGER NOT NULL,
	stack_depth_limit INTEGER NOT NULL,
	min_ns            INTEGER NOT NULL,
	max_ns            INTEGER NOT NULL,
	mean_ns           INTEGER NOT NULL,
	steps             INTEGER NOT NULL,
	resumes           INTEGER NOT NULL,
	max_chain         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	iteration  INTEGER NOT NULL,
	elapsed_ns INTEGER NOT NULL,
	PRIMARY KEY (run_id, iteration)
);
`

// OpenStore opens (creating if needed) the results database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating results directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	log.Debugf("results store %s opened", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists a report and its samples.
func (s *Store) Save(ctx context.Context, r *Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, name, started_at, warmup, iterations, parallel, stack_depth_limit,
		 min_ns, max_ns, mean_ns, steps, resumes, max_chain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.StartedAt.UnixNano(), r.Warmup, r.Iterations, r.Parallel, r.StackDepthLimit,
		int64(r.Min), int64(r.Max), int64(r.Mean), int64(r.Steps), r.Resumes, r.MaxChain,
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO samples (run_id, iteration, elapsed_ns) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("saving samples: %w", err)
	}
	defer stmt.Close()
	for i, d := range r.Samples {
		if _, err := stmt.ExecContext(ctx, r.ID, i, int64(d)); err != nil {
			return fmt.Errorf("saving sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	log.Debugf("saved run %s with %d samples", r.ID, len(r.Samples))
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, name, started_at, iterations, parallel, stack_depth_limit,
		min_ns, max_ns, mean_ns, resumes
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum                  Summary
			started              int64
			minNs, maxNs, meanNs int64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &started, &sum.Iterations, &sum.Parallel,
			&sum.StackDepthLimit, &minNs, &maxNs, &meanNs, &sum.Resumes); err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		sum.StartedAt = time.Unix(0, started).UTC()
		sum.Min, sum.Max, sum.Mean = time.Duration(minNs), time.Duration(maxNs), time.Duration(meanNs)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Samples returns the per-iteration durations of a stored run.
func (s *Store) Samples(ctx context.Context, id string) ([]time.Duration, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT iterations FROM runs WHERE id = ?", id).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT elapsed_ns FROM samples WHERE run_id = ? ORDER BY iteration", id)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	out := make([]time.Duration, 0, n)
	for rows.Next() {
		var ns int64
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("reading sample: %w", err)
		}
		out = append(out, time.Duration(ns))
	}
	return out, rows.Err()
}
