package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/documentloaders"

	"github.com/sheetflow-ai/sheetflow/rag"
)

// CSVLoader loads a CSV file into one document per row, the way langchaingo's
// CSV loader splits it, so no further chunking is needed before ingestion.
type CSVLoader struct {
	path    string
	columns []string
}

// CSVLoaderOption configures the CSVLoader.
type CSVLoaderOption func(*CSVLoader)

// WithColumns restricts loading to the named columns.
func WithColumns(columns []string) CSVLoaderOption {
	return func(l *CSVLoader) {
		l.columns = columns
	}
}

// NewCSVLoader creates a loader for the CSV file at path.
func NewCSVLoader(path string, opts ...CSVLoaderOption) *CSVLoader {
	l := &CSVLoader{path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file and returns one document per CSV row.
func (l *CSVLoader) Load(ctx context.Context) ([]rag.Document, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	csvLoader := documentloaders.NewCSV(f, l.columns...)
	schemaDocs, err := csvLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load csv rows: %w", err)
	}

	docs := rag.ConvertSchemaDocuments(schemaDocs)
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata["source"] = l.path
		docs[i].Metadata["row"] = i
		docs[i].ID = fmt.Sprintf("%s#%d", l.path, i)
	}
	return docs, nil
}

var _ rag.DocumentLoader = (*CSVLoader)(nil)
