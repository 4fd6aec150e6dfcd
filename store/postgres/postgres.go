// Package postgres implements the run history store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sheetflow-ai/sheetflow/store"
)

// DBPool defines the interface for the database connection pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore implements store.RunStore using PostgreSQL.
type RunStore struct {
	pool DBPool
}

// Options configuration for the Postgres connection.
type Options struct {
	ConnString string
}

// NewRunStore creates a store with its own connection pool.
func NewRunStore(ctx context.Context, opts Options) (*RunStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool creates a store over an existing pool. Useful for
// testing with mocks.
func NewRunStoreWithPool(pool DBPool) *RunStore {
	return &RunStore{pool: pool}
}

// InitSchema creates the necessary tables if they don't exist.
func (s *RunStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			pipeline TEXT NOT NULL,
			status TEXT NOT NULL,
			metadata JSONB,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS file_results (
			run_id TEXT NOT NULL,
			file TEXT NOT NULL,
			template TEXT,
			rows INTEGER NOT NULL,
			error TEXT,
			processed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (run_id, file)
		);
		CREATE INDEX IF NOT EXISTS idx_file_results_run_id ON file_results (run_id);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *RunStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveRun inserts or updates a run.
func (s *RunStore) SaveRun(ctx context.Context, run *store.RunRecord) error {
	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO runs (id, pipeline, status, metadata, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			finished_at = EXCLUDED.finished_at
	`
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt
	}
	_, err = s.pool.Exec(ctx, query,
		run.ID, run.Pipeline, string(run.Status), metadataJSON, run.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *RunStore) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	query := `SELECT id, pipeline, status, metadata, started_at, finished_at FROM runs WHERE id = $1`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*store.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, pipeline, status, metadata, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*store.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveFileResult records the outcome of one file.
func (s *RunStore) SaveFileResult(ctx context.Context, result *store.FileResult) error {
	query := `
		INSERT INTO file_results (run_id, file, template, rows, error, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, file) DO UPDATE SET
			template = EXCLUDED.template,
			rows = EXCLUDED.rows,
			error = EXCLUDED.error,
			processed_at = EXCLUDED.processed_at
	`
	_, err := s.pool.Exec(ctx, query,
		result.RunID, result.File, result.Template, result.Rows, result.Error, result.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to save file result: %w", err)
	}
	return nil
}

// ListFileResults returns the file results of a run.
func (s *RunStore) ListFileResults(ctx context.Context, runID string) ([]*store.FileResult, error) {
	query := `SELECT run_id, file, template, rows, error, processed_at FROM file_results WHERE run_id = $1 ORDER BY processed_at`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file results: %w", err)
	}
	defer rows.Close()

	var results []*store.FileResult
	for rows.Next() {
		var r store.FileResult
		if err := rows.Scan(&r.RunID, &r.File, &r.Template, &r.Rows, &r.Error, &r.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// DeleteRun removes a run and its file results.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM file_results WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete file results: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*store.RunRecord, error) {
	var run store.RunRecord
	var status string
	var metadataJSON []byte
	var finished *time.Time
	if err := row.Scan(&run.ID, &run.Pipeline, &status, &metadataJSON, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = store.RunStatus(status)
	if finished != nil {
		run.FinishedAt = *finished
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &run, nil
}

var _ store.RunStore = (*RunStore)(nil)
