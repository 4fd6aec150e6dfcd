package langflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runResponse(text string) string {
	return fmt.Sprintf(`{
		"session_id": "sess-1",
		"outputs": [
			{"outputs": [
				{"results": {"message": {"text": %q}}}
			]}
		]
	}`, text)
}

func TestClient_Run(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, runResponse("olá do flow"))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "key-1"})
	result, err := c.Run(context.Background(), RunRequest{
		FlowID: "flow-abc",
		Input:  "bom dia",
		Tweaks: map[string]map[string]any{"ChatInput-1": {"session_id": "x"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/run/flow-abc", gotPath)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "bom dia", gotBody["input_value"])
	assert.Equal(t, "chat", gotBody["input_type"])
	assert.NotNil(t, gotBody["tweaks"])

	assert.Equal(t, "olá do flow", result.Text)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.NotNil(t, result.Raw)
}

func TestClient_Run_MissingFlowID(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://localhost:7860"})
	_, err := c.Run(context.Background(), RunRequest{})
	assert.ErrorContains(t, err, "flow id is required")
}

func TestClient_Run_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "flow not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Run(context.Background(), RunRequest{FlowID: "ghost"})
	assert.ErrorContains(t, err, "status 404")
}

func TestClient_Run_NoMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"outputs": []}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	result, err := c.Run(context.Background(), RunRequest{FlowID: "flow-abc"})
	require.NoError(t, err)
	assert.Empty(t, result.Text)
}
