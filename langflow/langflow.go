// Package langflow is a thin client for a hosted LangFlow runtime. Flows are
// opaque: the client posts an input value to a flow id and extracts the chat
// output from the response.
package langflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sheetflow-ai/sheetflow/log"
)

// Client calls a LangFlow server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Options configures the client.
type Options struct {
	// BaseURL is the server address, e.g. "http://localhost:7860".
	BaseURL string
	// APIKey authenticates requests when the server requires it.
	APIKey string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// NewClient creates a LangFlow client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
	}
}

// RunRequest is the input of a flow run.
type RunRequest struct {
	// FlowID identifies the flow to run.
	FlowID string
	// Input is the input value handed to the flow.
	Input string
	// Tweaks override component parameters by component id.
	Tweaks map[string]map[string]any
}

// RunResult holds the flow output.
type RunResult struct {
	// Text is the extracted chat output, empty when none was found.
	Text string
	// SessionID is the conversation session reported by the server.
	SessionID string
	// Raw is the decoded response body.
	Raw map[string]any
}

type runBody struct {
	InputValue string                    `json:"input_value"`
	InputType  string                    `json:"input_type"`
	OutputType string                    `json:"output_type"`
	Tweaks     map[string]map[string]any `json:"tweaks,omitempty"`
}

// Run executes a flow and returns its output.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.FlowID == "" {
		return nil, fmt.Errorf("flow id is required")
	}

	body, err := json.Marshal(runBody{
		InputValue: req.Input,
		InputType:  "chat",
		OutputType: "chat",
		Tweaks:     req.Tweaks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/run/%s", c.baseURL, req.FlowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flow request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flow %s returned status %d: %s", req.FlowID, resp.StatusCode, data)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := &RunResult{Raw: raw}
	if sid, ok := raw["session_id"].(string); ok {
		result.SessionID = sid
	}
	result.Text = extractText(raw)
	log.Debug("flow %s returned %d chars", req.FlowID, len(result.Text))
	return result, nil
}

// extractText digs the chat message out of the nested run response:
// outputs[0].outputs[0].results.message.text.
func extractText(raw map[string]any) string {
	outer, ok := raw["outputs"].([]any)
	if !ok || len(outer) == 0 {
		return ""
	}
	first, ok := outer[0].(map[string]any)
	if !ok {
		return ""
	}
	inner, ok := first["outputs"].([]any)
	if !ok || len(inner) == 0 {
		return ""
	}
	entry, ok := inner[0].(map[string]any)
	if !ok {
		return ""
	}
	results, ok := entry["results"].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := results["message"].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := message["text"].(string)
	return text
}
