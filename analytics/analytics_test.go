package analytics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordAndSummarize(t *testing.T) {
	c := NewCollector()
	c.Record(Usage{Pipeline: "extract", Model: "gpt-4o-mini", PromptTokens: 100, CompletionTokens: 20, Duration: time.Second})
	c.Record(Usage{Pipeline: "extract", Model: "gpt-4o-mini", PromptTokens: 50, CompletionTokens: 10, Duration: time.Second})
	c.Record(Usage{Pipeline: "rag", Model: "gpt-4o-mini", PromptTokens: 30, CompletionTokens: 5})

	summaries := c.Summarize()
	require.Len(t, summaries, 2)

	assert.Equal(t, "extract", summaries[0].Pipeline)
	assert.Equal(t, 2, summaries[0].Calls)
	assert.Equal(t, 150, summaries[0].PromptTokens)
	assert.Equal(t, 30, summaries[0].CompletionTokens)
	assert.Equal(t, 2*time.Second, summaries[0].TotalDuration)

	assert.Equal(t, "rag", summaries[1].Pipeline)
	assert.Equal(t, 1, summaries[1].Calls)
}

func TestUsage_TotalTokens(t *testing.T) {
	assert.Equal(t, 120, Usage{PromptTokens: 100, CompletionTokens: 20}.TotalTokens())
}

func TestCollector_WriteCSV(t *testing.T) {
	c := NewCollector()
	c.Record(Usage{
		Pipeline: "extract", Model: "gpt-4o-mini",
		PromptTokens: 100, CompletionTokens: 20,
		Duration: 1500 * time.Millisecond,
		At:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	var sb strings.Builder
	require.NoError(t, c.WriteCSV(&sb))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "at,pipeline,model,prompt_tokens,completion_tokens,duration_ms", lines[0])
	assert.Equal(t, "2025-06-01T12:00:00Z,extract,gpt-4o-mini,100,20,1500", lines[1])
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(Usage{Pipeline: "extract", PromptTokens: 1})
		}()
	}
	wg.Wait()

	assert.Len(t, c.Records(), 20)
	assert.Equal(t, 20, c.Summarize()[0].PromptTokens)
}
