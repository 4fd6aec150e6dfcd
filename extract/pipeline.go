// Package extract implements the spreadsheet extraction pipeline: each input
// file has its header located, is matched against a known template, and its
// rows are projected into a single master output file.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/outputparser"

	"github.com/sheetflow-ai/sheetflow/analytics"
	"github.com/sheetflow-ai/sheetflow/excel"
	"github.com/sheetflow-ai/sheetflow/flow"
	"github.com/sheetflow-ai/sheetflow/log"
	"github.com/sheetflow-ai/sheetflow/store"
	"github.com/sheetflow-ai/sheetflow/transform"
)

// MatchThreshold is the minimum header similarity for a template match when
// no model confirms the choice.
const MatchThreshold = 0.5

// ResultCache is consulted to skip files already processed.
type ResultCache interface {
	Get(ctx context.Context, file string) (*store.FileResult, error)
	Put(ctx context.Context, result *store.FileResult) error
}

// Options configures the pipeline.
type Options struct {
	// InputDir holds the spreadsheets to process.
	InputDir string
	// OutputFile is the master CSV accumulating extracted rows.
	OutputFile string
	// TemplatesFile is the parametrization CSV.
	TemplatesFile string
	// Separator is the CSV separator. Defaults to ','.
	Separator rune
	// PreviewRows bounds the rows shown to the model. Defaults to 20.
	PreviewRows int
	// LLM confirms template choices and locates headers. Optional; without
	// it the pipeline falls back to similarity alone.
	LLM llms.Model
	// Cache skips already processed files. Optional.
	Cache ResultCache
	// Runs records run history. Optional.
	Runs store.RunStore
	// Observer is notified of node completions. Optional.
	Observer flow.StepObserver
	// Usage collects per-file processing stats. Optional.
	Usage *analytics.Collector
	// Model names the chat model in usage records.
	Model string
}

// Report is the outcome of a pipeline run.
type Report struct {
	// RunID identifies the run.
	RunID string
	// Able lists files that were extracted, with their results.
	Able []*store.FileResult
	// Unable maps failed files to the failure reason.
	Unable map[string]string
	// Skipped lists files answered from the cache.
	Skipped []string
}

// Pipeline extracts spreadsheets into the master file.
type Pipeline struct {
	opts         Options
	templates    *TemplateSet
	headerParser outputparser.Structured
	choiceParser outputparser.Structured
}

// NewPipeline loads the templates and prepares the pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Separator == 0 {
		opts.Separator = ','
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 20
	}

	templates, err := LoadTemplates(opts.TemplatesFile, opts.Separator)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return &Pipeline{
		opts:      opts,
		templates: templates,
		headerParser: outputparser.NewStructured([]outputparser.ResponseSchema{
			{Name: "header_row", Description: "1-based row number of the header row"},
			{Name: "header", Description: "the header cells joined by ';'"},
		}),
		choiceParser: outputparser.NewStructured([]outputparser.ResponseSchema{
			{Name: "template", Description: "name of the matching template, or 'none'"},
		}),
	}, nil
}

// Run processes every .xlsx and .csv file in the input directory.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	files, err := p.listInputFiles()
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:  uuid.NewString(),
		Unable: make(map[string]string),
	}

	var run *store.RunRecord
	if p.opts.Runs != nil {
		run = &store.RunRecord{
			ID:        report.RunID,
			Pipeline:  "extract",
			Status:    store.StatusRunning,
			Metadata:  map[string]any{"input_dir": p.opts.InputDir, "files": len(files)},
			StartedAt: time.Now().UTC(),
		}
		if err := p.opts.Runs.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	master, err := excel.NewMasterFile(p.opts.OutputFile,
		append(p.templates.OutputColumns, "Source"), p.opts.Separator)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if p.opts.Cache != nil {
			cached, err := p.opts.Cache.Get(ctx, file)
			if err == nil && cached.Error == "" {
				log.Info("skipping %s, already processed", file)
				report.Skipped = append(report.Skipped, file)
				continue
			}
		}

		started := time.Now()
		result := p.processFile(ctx, file, master)
		result.RunID = report.RunID
		if p.opts.Usage != nil {
			p.opts.Usage.Record(analytics.Usage{
				Pipeline: "extract",
				Model:    p.opts.Model,
				Duration: time.Since(started),
				At:       started.UTC(),
			})
		}

		if result.Error == "" {
			report.Able = append(report.Able, result)
		} else {
			report.Unable[file] = result.Error
		}
		if p.opts.Cache != nil && result.Error == "" {
			if err := p.opts.Cache.Put(ctx, result); err != nil {
				log.Warn("failed to cache result for %s: %v", file, err)
			}
		}
		if p.opts.Runs != nil {
			if err := p.opts.Runs.SaveFileResult(ctx, result); err != nil {
				log.Warn("failed to record result for %s: %v", file, err)
			}
		}
	}

	if run != nil {
		run.Status = store.StatusSucceeded
		if len(report.Able) == 0 && len(report.Unable) > 0 {
			run.Status = store.StatusFailed
		}
		run.FinishedAt = time.Now().UTC()
		if err := p.opts.Runs.SaveRun(ctx, run); err != nil {
			log.Warn("failed to finish run record: %v", err)
		}
	}
	return report, nil
}

func (p *Pipeline) listInputFiles() ([]string, error) {
	entries, err := os.ReadDir(p.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".xlsx", ".xls", ".csv":
			files = append(files, filepath.Join(p.opts.InputDir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no spreadsheet files in %s", p.opts.InputDir)
	}
	return files, nil
}

// processFile runs the per-file graph and converts its final state into a
// FileResult.
func (p *Pipeline) processFile(ctx context.Context, file string, master *excel.MasterFile) *store.FileResult {
	result := &store.FileResult{File: file, ProcessedAt: time.Now().UTC()}

	runnable, err := p.buildGraph(master)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if p.opts.Observer != nil {
		runnable = runnable.WithObserver(p.opts.Observer)
	}

	final, err := runnable.Invoke(ctx, flow.State{"file": file})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if reason, ok := final["unable_reason"].(string); ok && reason != "" {
		result.Error = reason
		return result
	}
	if tpl, ok := final["template"].(Template); ok {
		result.Template = tpl.Name
	}
	if rows, ok := final["appended"].(int); ok {
		result.Rows = rows
	}
	return result
}

func (p *Pipeline) buildGraph(master *excel.MasterFile) (*flow.Runnable, error) {
	g := flow.NewGraph()

	g.AddNode("load_preview", "reads the file rows", p.loadPreview)
	g.AddNode("detect_header", "locates the header row", p.detectHeader)
	g.AddNode("choose_template", "matches the header to a template", p.chooseTemplate)
	g.AddNode("extract_rows", "projects data rows to output columns", p.extractRows)
	g.AddNode("append_master", "appends extracted rows to the master file",
		func(ctx context.Context, state flow.State) (flow.State, error) {
			return p.appendMaster(ctx, state, master)
		})

	g.SetEntryPoint("load_preview")
	g.AddEdge("load_preview", "detect_header")
	g.AddEdge("detect_header", "choose_template")
	g.AddConditionalEdge("choose_template", func(ctx context.Context, state flow.State) string {
		if reason, ok := state["unable_reason"].(string); ok && reason != "" {
			return flow.END
		}
		return "extract_rows"
	})
	g.AddEdge("extract_rows", "append_master")
	g.AddEdge("append_master", flow.END)

	return g.Compile()
}

func (p *Pipeline) loadPreview(ctx context.Context, state flow.State) (flow.State, error) {
	file := state["file"].(string)
	rows, err := excel.ReadRows(file, excel.ReadOptions{Separator: p.opts.Separator})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file %s is empty", file)
	}
	return flow.State{"rows": rows}, nil
}

// detectHeader locates the header row. With a model it asks for the row
// number; otherwise the first row with at least two non-empty cells wins.
func (p *Pipeline) detectHeader(ctx context.Context, state flow.State) (flow.State, error) {
	rows := state["rows"].([][]string)

	if p.opts.LLM == nil {
		for i, row := range rows {
			if countNonEmpty(row) >= 2 {
				return flow.State{"header_row": i + 1, "header": joinCells(row)}, nil
			}
		}
		return flow.State{"header_row": 1, "header": joinCells(rows[0])}, nil
	}

	preview := renderPreview(rows, p.opts.PreviewRows)
	prompt := fmt.Sprintf("The following is the beginning of a spreadsheet, one line per row, prefixed by its 1-based row number. Identify the header row, the row naming the data columns.\n\n%s\n\n%s",
		preview, p.headerParser.GetFormatInstructions())

	content, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("header detection failed: %w", err)
	}
	fields, err := p.parseStructured(p.headerParser, content)
	if err != nil {
		return nil, fmt.Errorf("header detection failed: %w", err)
	}

	headerRow, err := strconv.Atoi(strings.TrimSpace(fields["header_row"]))
	if err != nil || headerRow < 1 || headerRow > len(rows) {
		return nil, fmt.Errorf("model returned invalid header row %q", fields["header_row"])
	}
	return flow.State{
		"header_row": headerRow,
		"header":     joinCells(rows[headerRow-1]),
	}, nil
}

// chooseTemplate matches the detected header against the known templates.
// The most similar template is picked; a model, when available, confirms or
// rejects the choice.
func (p *Pipeline) chooseTemplate(ctx context.Context, state flow.State) (flow.State, error) {
	header := state["header"].(string)

	best, ratio := p.templates.BestMatch(header)
	log.Debug("best template for header %q is %s (ratio %.2f)", header, best.Name, ratio)

	if p.opts.LLM == nil {
		if ratio < MatchThreshold {
			return flow.State{"unable_reason": fmt.Sprintf("no template matches header %q", header)}, nil
		}
		return flow.State{"template": best}, nil
	}

	var names []string
	for _, tpl := range p.templates.Templates {
		names = append(names, fmt.Sprintf("%s: %s", tpl.Name, tpl.Header))
	}
	prompt := fmt.Sprintf("A spreadsheet has the header:\n%s\n\nKnown templates and their headers:\n%s\n\nPick the template whose header describes the same data, or 'none' if no template fits.\n\n%s",
		header, strings.Join(names, "\n"), p.choiceParser.GetFormatInstructions())

	content, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("template choice failed: %w", err)
	}
	fields, err := p.parseStructured(p.choiceParser, content)
	if err != nil {
		return nil, fmt.Errorf("template choice failed: %w", err)
	}

	name := strings.TrimSpace(fields["template"])
	if name == "" || strings.EqualFold(name, "none") {
		return flow.State{"unable_reason": fmt.Sprintf("no template matches header %q", header)}, nil
	}
	tpl, ok := p.templates.ByName(name)
	if !ok {
		return nil, fmt.Errorf("model chose unknown template %q", name)
	}
	return flow.State{"template": tpl}, nil
}

func (p *Pipeline) extractRows(ctx context.Context, state flow.State) (flow.State, error) {
	rows := state["rows"].([][]string)
	headerRow := state["header_row"].(int)
	tpl := state["template"].(Template)

	sourceHeader := rows[headerRow-1]
	var data [][]string
	for _, row := range rows[headerRow:] {
		if countNonEmpty(row) > 0 {
			data = append(data, row)
		}
	}

	projected := transform.ProjectRows(sourceHeader, data, p.templates.OutputColumns, tpl.Mapping)
	return flow.State{"extracted": projected}, nil
}

func (p *Pipeline) appendMaster(ctx context.Context, state flow.State, master *excel.MasterFile) (flow.State, error) {
	file := state["file"].(string)
	extracted := state["extracted"].([][]string)
	if len(extracted) == 0 {
		return flow.State{"appended": 0}, nil
	}

	var sb strings.Builder
	for _, row := range extracted {
		sb.WriteString(strings.Join(quoteAll(row), string(p.opts.Separator)))
		sb.WriteString("\n")
	}
	appended, err := master.AppendCSV(sb.String(), filepath.Base(file))
	if err != nil {
		return nil, err
	}
	return flow.State{"appended": appended}, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.opts.LLM.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func (p *Pipeline) parseStructured(parser outputparser.Structured, content string) (map[string]string, error) {
	parsed, err := parser.Parse(content)
	if err != nil {
		return nil, err
	}
	fields, ok := parsed.(map[string]string)
	if !ok {
		return nil, fmt.Errorf("unexpected parser output %T", parsed)
	}
	return fields, nil
}

func renderPreview(rows [][]string, limit int) string {
	if len(rows) > limit {
		rows = rows[:limit]
	}
	var sb strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, joinCells(row))
	}
	return sb.String()
}

func joinCells(row []string) string {
	trimmed := make([]string, 0, len(row))
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			trimmed = append(trimmed, strings.TrimSpace(c))
		}
	}
	return strings.Join(trimmed, ";")
}

func countNonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func quoteAll(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		if strings.ContainsAny(c, ",;\"\n") {
			c = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
		}
		out[i] = c
	}
	return out
}
