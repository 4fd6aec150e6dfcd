package trace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetflow-ai/sheetflow/flow"
)

type capturedRequest struct {
	method  string
	path    string
	apiKey  string
	payload map[string]any
}

func newCaptureServer(t *testing.T) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		requests = append(requests, capturedRequest{
			method:  r.Method,
			path:    r.URL.Path,
			apiKey:  r.Header.Get("x-api-key"),
			payload: payload,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestClient_StartAndEndRun(t *testing.T) {
	srv, requests := newCaptureServer(t)
	c := NewClient(Options{Endpoint: srv.URL, APIKey: "key-1", Project: "sheetflow"})
	ctx := context.Background()

	id := c.StartRun(ctx, "extract", "chain", map[string]any{"file": "a.xlsx"})
	require.NotEmpty(t, id)
	c.EndRun(ctx, id, map[string]any{"rows": 12}, nil)

	require.Len(t, *requests, 2)

	start := (*requests)[0]
	assert.Equal(t, http.MethodPost, start.method)
	assert.Equal(t, "/runs", start.path)
	assert.Equal(t, "key-1", start.apiKey)
	assert.Equal(t, "extract", start.payload["name"])
	assert.Equal(t, "chain", start.payload["run_type"])
	assert.Equal(t, "sheetflow", start.payload["session_name"])

	end := (*requests)[1]
	assert.Equal(t, http.MethodPatch, end.method)
	assert.Equal(t, "/runs/"+id, end.path)
	assert.Equal(t, map[string]any{"rows": float64(12)}, end.payload["outputs"])
	_, hasErr := end.payload["error"]
	assert.False(t, hasErr)
}

func TestClient_EndRunWithError(t *testing.T) {
	srv, requests := newCaptureServer(t)
	c := NewClient(Options{Endpoint: srv.URL})

	c.EndRun(context.Background(), "run-1", nil, errors.New("boom"))

	require.Len(t, *requests, 1)
	assert.Equal(t, "boom", (*requests)[0].payload["error"])
}

func TestClient_ServerErrorDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL})
	id := c.StartRun(context.Background(), "x", "chain", nil)
	assert.NotEmpty(t, id)
}

func TestNoopTracer(t *testing.T) {
	var tracer Tracer = NoopTracer{}
	id := tracer.StartRun(context.Background(), "x", "chain", nil)
	assert.NotEmpty(t, id)
	tracer.EndRun(context.Background(), id, nil, nil)
}

func TestFlowObserver(t *testing.T) {
	srv, requests := newCaptureServer(t)
	obs := NewFlowObserver(NewClient(Options{Endpoint: srv.URL}))

	obs.OnNodeEnd(context.Background(), "detect_header",
		flow.State{"file": "a.xlsx", "header": "Nome"}, 5*time.Millisecond, nil)

	require.Len(t, *requests, 2)
	assert.Equal(t, "detect_header", (*requests)[0].payload["name"])
	outputs := (*requests)[1].payload["outputs"].(map[string]any)
	assert.Equal(t, []any{"file", "header"}, outputs["state_keys"])
}
