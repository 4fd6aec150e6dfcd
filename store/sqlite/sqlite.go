// Package sqlite implements the run history store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sheetflow-ai/sheetflow/store"
)

// RunStore implements store.RunStore using SQLite.
type RunStore struct {
	db *sql.DB
}

// Options configuration for the SQLite connection.
type Options struct {
	Path string
}

// NewRunStore opens the database and ensures the schema exists.
func NewRunStore(opts Options) (*RunStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	s := &RunStore{db: db}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the necessary tables if they don't exist.
func (s *RunStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			pipeline TEXT NOT NULL,
			status TEXT NOT NULL,
			metadata TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		);
		CREATE TABLE IF NOT EXISTS file_results (
			run_id TEXT NOT NULL,
			file TEXT NOT NULL,
			template TEXT,
			rows INTEGER NOT NULL,
			error TEXT,
			processed_at DATETIME NOT NULL,
			PRIMARY KEY (run_id, file)
		);
		CREATE INDEX IF NOT EXISTS idx_file_results_run_id ON file_results (run_id);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts or updates a run.
func (s *RunStore) SaveRun(ctx context.Context, run *store.RunRecord) error {
	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO runs (id, pipeline, status, metadata, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			metadata = excluded.metadata,
			finished_at = excluded.finished_at
	`
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt
	}
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.Pipeline, string(run.Status), string(metadataJSON), run.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *RunStore) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	query := `SELECT id, pipeline, status, metadata, started_at, finished_at FROM runs WHERE id = ?`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	query := `SELECT id, pipeline, status, metadata, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
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
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, file) DO UPDATE SET
			template = excluded.template,
			rows = excluded.rows,
			error = excluded.error,
			processed_at = excluded.processed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		result.RunID, result.File, result.Template, result.Rows, result.Error, result.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to save file result: %w", err)
	}
	return nil
}

// ListFileResults returns the file results of a run.
func (s *RunStore) ListFileResults(ctx context.Context, runID string) ([]*store.FileResult, error) {
	query := `SELECT run_id, file, template, rows, error, processed_at FROM file_results WHERE run_id = ? ORDER BY processed_at`
	rows, err := s.db.QueryContext(ctx, query, runID)
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM file_results WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete file results: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*store.RunRecord, error) {
	var run store.RunRecord
	var status, metadataJSON string
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.Pipeline, &status, &metadataJSON, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = store.RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &run, nil
}

var _ store.RunStore = (*RunStore)(nil)

// NewRun builds a running RunRecord with the current time.
func NewRun(id, pipeline string) *store.RunRecord {
	return &store.RunRecord{
		ID:        id,
		Pipeline:  pipeline,
		Status:    store.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}
