// Package analytics accumulates LLM usage per pipeline run and exports
// summaries.
package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Usage is one recorded model call.
type Usage struct {
	// Pipeline names the pipeline that made the call.
	Pipeline string
	// Model is the model id used.
	Model string
	// PromptTokens and CompletionTokens are the token counts of the call.
	PromptTokens     int
	CompletionTokens int
	// Duration is the wall time of the call.
	Duration time.Duration
	// At is when the call finished.
	At time.Time
}

// TotalTokens returns prompt plus completion tokens.
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Summary aggregates usage per pipeline.
type Summary struct {
	Pipeline         string
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalDuration    time.Duration
}

// Collector gathers usage records. Safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	records []Usage
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends a usage record.
func (c *Collector) Record(u Usage) {
	if u.At.IsZero() {
		u.At = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, u)
}

// Records returns a copy of all records in insertion order.
func (c *Collector) Records() []Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Usage, len(c.records))
	copy(out, c.records)
	return out
}

// Summarize aggregates records per pipeline, sorted by pipeline name.
func (c *Collector) Summarize() []Summary {
	byPipeline := make(map[string]*Summary)
	for _, u := range c.Records() {
		s, ok := byPipeline[u.Pipeline]
		if !ok {
			s = &Summary{Pipeline: u.Pipeline}
			byPipeline[u.Pipeline] = s
		}
		s.Calls++
		s.PromptTokens += u.PromptTokens
		s.CompletionTokens += u.CompletionTokens
		s.TotalDuration += u.Duration
	}

	names := make([]string, 0, len(byPipeline))
	for name := range byPipeline {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		out = append(out, *byPipeline[name])
	}
	return out
}

// WriteCSV exports all records as CSV.
func (c *Collector) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"at", "pipeline", "model", "prompt_tokens", "completion_tokens", "duration_ms"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, u := range c.Records() {
		row := []string{
			u.At.Format(time.RFC3339),
			u.Pipeline,
			u.Model,
			strconv.Itoa(u.PromptTokens),
			strconv.Itoa(u.CompletionTokens),
			strconv.FormatInt(u.Duration.Milliseconds(), 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
