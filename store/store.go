// Package store defines the run history store. Every pipeline execution and
// its per-file outcomes are persisted so past runs can be listed and audited.
package store

import (
	"context"
	"time"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// RunRecord is one pipeline execution.
type RunRecord struct {
	// ID uniquely identifies the run.
	ID string
	// Pipeline names the pipeline that ran.
	Pipeline string
	// Status is the current state of the run.
	Status RunStatus
	// Metadata holds arbitrary run details.
	Metadata map[string]any
	// StartedAt and FinishedAt bound the execution.
	StartedAt  time.Time
	FinishedAt time.Time
}

// FileResult is the outcome of processing one input file within a run.
type FileResult struct {
	// RunID links the result to its run.
	RunID string
	// File is the input file path.
	File string
	// Template is the matched template name, empty when none matched.
	Template string
	// Rows is the number of extracted rows.
	Rows int
	// Error holds the failure reason, empty on success.
	Error string
	// ProcessedAt is when the file finished processing.
	ProcessedAt time.Time
}

// RunStore persists runs and their per-file results.
type RunStore interface {
	// SaveRun inserts or updates a run.
	SaveRun(ctx context.Context, run *RunRecord) error
	// GetRun loads a run by id.
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	// SaveFileResult records the outcome of one file.
	SaveFileResult(ctx context.Context, result *FileResult) error
	// ListFileResults returns the file results of a run.
	ListFileResults(ctx context.Context, runID string) ([]*FileResult, error)
	// DeleteRun removes a run and its file results.
	DeleteRun(ctx context.Context, id string) error
	// Close releases the underlying connection.
	Close() error
}
