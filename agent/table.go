// Package agent implements the LLM agents of the toolkit: question answering
// over tabular data, retrieval augmented answering over a vector store, and
// email reply drafting.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/outputparser"

	"github.com/sheetflow-ai/sheetflow/excel"
	"github.com/sheetflow-ai/sheetflow/log"
)

const tableSystemPrompt = `You are a data analyst. You answer questions about the CSV table provided by the user. Base every answer strictly on the table content. Row numbers are 1-based and include the header row.`

// RowAnswer is a structured answer pointing to a specific table row.
type RowAnswer struct {
	// RowIndex is the 1-based row the answer refers to, 0 when unknown.
	RowIndex int
	// RowData is the raw content of that row.
	RowData string
	// Result is the answer text.
	Result string
	// Err holds the model reported failure reason, empty on success.
	Err string
}

// TableAgent answers natural language questions about a CSV table.
type TableAgent struct {
	llm     llms.Model
	csvData string
	parser  outputparser.Structured
}

// NewTableAgent creates an agent over the given CSV content.
func NewTableAgent(llm llms.Model, csvData string) *TableAgent {
	return &TableAgent{
		llm:     llm,
		csvData: csvData,
		parser: outputparser.NewStructured([]outputparser.ResponseSchema{
			{Name: "row_index", Description: "1-based number of the row the answer refers to, or 0"},
			{Name: "row_data", Description: "raw content of that row, or empty"},
			{Name: "result", Description: "the answer to the question"},
			{Name: "error", Description: "failure reason when the question cannot be answered, otherwise empty"},
		}),
	}
}

// NewTableAgentFromFile loads an .xlsx or .csv file and builds an agent over
// its content.
func NewTableAgentFromFile(llm llms.Model, path string) (*TableAgent, error) {
	csvData, err := excel.ReadAsCSVString(path, excel.ReadOptions{})
	if err != nil {
		return nil, err
	}
	return NewTableAgent(llm, csvData), nil
}

// Ask answers a free form question about the table.
func (a *TableAgent) Ask(ctx context.Context, question string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, tableSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Table:\n%s\n\nQuestion: %s", a.csvData, question)),
	}

	resp, err := a.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("table question failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// AskRow answers a question and returns a structured answer locating the
// relevant row.
func (a *TableAgent) AskRow(ctx context.Context, question string) (RowAnswer, error) {
	prompt := fmt.Sprintf("Table:\n%s\n\nQuestion: %s\n\n%s",
		a.csvData, question, a.parser.GetFormatInstructions())

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, tableSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := a.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return RowAnswer{}, fmt.Errorf("table question failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return RowAnswer{}, fmt.Errorf("model returned no choices")
	}

	parsed, err := a.parser.Parse(resp.Choices[0].Content)
	if err != nil {
		return RowAnswer{}, fmt.Errorf("failed to parse structured answer: %w", err)
	}
	fields, ok := parsed.(map[string]string)
	if !ok {
		return RowAnswer{}, fmt.Errorf("unexpected parser output %T", parsed)
	}

	answer := RowAnswer{
		RowData: fields["row_data"],
		Result:  fields["result"],
		Err:     fields["error"],
	}
	if raw := strings.TrimSpace(fields["row_index"]); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			log.Warn("non numeric row_index %q in model answer", raw)
		} else {
			answer.RowIndex = n
		}
	}
	return answer, nil
}
