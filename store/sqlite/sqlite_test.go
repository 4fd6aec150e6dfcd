package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetflow-ai/sheetflow/store"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := NewRunStore(Options{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := NewRun("run-1", "extract")
	run.Metadata = map[string]any{"input_dir": "/data/in"}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "extract", got.Pipeline)
	assert.Equal(t, store.StatusRunning, got.Status)
	assert.Equal(t, "/data/in", got.Metadata["input_dir"])
	assert.True(t, got.FinishedAt.IsZero())
}

func TestSaveRun_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := NewRun("run-1", "extract")
	require.NoError(t, s.SaveRun(ctx, run))

	run.Status = store.StatusSucceeded
	run.FinishedAt = time.Now().UTC()
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusSucceeded, got.Status)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "ghost")
	assert.ErrorContains(t, err, "run not found")
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := NewRun("run-1", "extract")
	older.StartedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.SaveRun(ctx, older))
	require.NoError(t, s.SaveRun(ctx, NewRun("run-2", "rag")))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFileResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, NewRun("run-1", "extract")))
	require.NoError(t, s.SaveFileResult(ctx, &store.FileResult{
		RunID: "run-1", File: "a.xlsx", Template: "SAMS_2", Rows: 12,
		ProcessedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.SaveFileResult(ctx, &store.FileResult{
		RunID: "run-1", File: "b.xlsx", Error: "no matching template",
		ProcessedAt: time.Now().UTC().Add(time.Second),
	}))

	results, err := s.ListFileResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "SAMS_2", results[0].Template)
	assert.Equal(t, 12, results[0].Rows)
	assert.Equal(t, "no matching template", results[1].Error)
}

func TestDeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, NewRun("run-1", "extract")))
	require.NoError(t, s.SaveFileResult(ctx, &store.FileResult{
		RunID: "run-1", File: "a.xlsx", ProcessedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.DeleteRun(ctx, "run-1"))

	_, err := s.GetRun(ctx, "run-1")
	assert.Error(t, err)
	results, err := s.ListFileResults(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, results)
}
