// Package trace reports pipeline and LLM runs to a LangSmith compatible
// tracing endpoint. Tracing is optional; when disabled the no-op tracer is
// used and nothing leaves the process.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sheetflow-ai/sheetflow/log"
)

// Tracer records the start and end of named runs.
type Tracer interface {
	// StartRun reports a run start and returns its id.
	StartRun(ctx context.Context, name, runType string, inputs map[string]any) string
	// EndRun reports a run end with its outputs or error.
	EndRun(ctx context.Context, id string, outputs map[string]any, runErr error)
}

// NoopTracer discards everything.
type NoopTracer struct{}

func (NoopTracer) StartRun(ctx context.Context, name, runType string, inputs map[string]any) string {
	return uuid.NewString()
}

func (NoopTracer) EndRun(ctx context.Context, id string, outputs map[string]any, runErr error) {}

// Options configures the REST tracer.
type Options struct {
	// Endpoint is the base URL of the tracing API.
	Endpoint string
	// APIKey authenticates requests.
	APIKey string
	// Project is the session runs are grouped under.
	Project string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client posts runs to a tracing endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	project    string
	httpClient *http.Client
}

// NewClient creates a REST tracer.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	project := opts.Project
	if project == "" {
		project = "default"
	}
	return &Client{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		project:    project,
		httpClient: httpClient,
	}
}

type runPayload struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	RunType     string         `json:"run_type"`
	StartTime   string         `json:"start_time,omitempty"`
	EndTime     string         `json:"end_time,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	SessionName string         `json:"session_name,omitempty"`
}

// StartRun posts a run start. Failures are logged and swallowed so tracing
// never breaks a pipeline.
func (c *Client) StartRun(ctx context.Context, name, runType string, inputs map[string]any) string {
	id := uuid.NewString()
	payload := runPayload{
		ID:          id,
		Name:        name,
		RunType:     runType,
		StartTime:   time.Now().UTC().Format(time.RFC3339Nano),
		Inputs:      inputs,
		SessionName: c.project,
	}
	if err := c.post(ctx, http.MethodPost, "/runs", payload); err != nil {
		log.Warn("failed to report run start: %v", err)
	}
	return id
}

// EndRun patches a run with its outputs or error.
func (c *Client) EndRun(ctx context.Context, id string, outputs map[string]any, runErr error) {
	payload := runPayload{
		ID:      id,
		EndTime: time.Now().UTC().Format(time.RFC3339Nano),
		Outputs: outputs,
	}
	if runErr != nil {
		payload.Error = runErr.Error()
	}
	if err := c.post(ctx, http.MethodPatch, "/runs/"+id, payload); err != nil {
		log.Warn("failed to report run end: %v", err)
	}
}

func (c *Client) post(ctx context.Context, method, path string, payload runPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("tracing endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

var (
	_ Tracer = (*Client)(nil)
	_ Tracer = NoopTracer{}
)
