package store

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores/chroma"

	"github.com/sheetflow-ai/sheetflow/rag"
)

// ChromaStore is a Chroma-backed vector store. Collections are namespaced so
// pipelines can build and drop throwaway collections.
type ChromaStore struct {
	*rag.LangChainStore
	inner chroma.Store
}

// ChromaOptions configures the Chroma connection.
type ChromaOptions struct {
	URL        string
	Collection string
}

// NewChromaStore connects to a Chroma server and opens (or creates) the
// configured collection.
func NewChromaStore(opts ChromaOptions, embedder rag.Embedder) (*ChromaStore, error) {
	if opts.URL == "" {
		opts.URL = "http://localhost:8000"
	}
	if opts.Collection == "" {
		opts.Collection = "sheetflow"
	}

	inner, err := chroma.New(
		chroma.WithChromaURL(opts.URL),
		chroma.WithEmbedder(embeddings.Embedder(embedder)),
		chroma.WithNameSpace(opts.Collection),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open chroma collection %q: %w", opts.Collection, err)
	}

	return &ChromaStore{
		LangChainStore: rag.NewLangChainStore(inner),
		inner:          inner,
	}, nil
}

// DropCollection removes the backing Chroma collection.
func (s *ChromaStore) DropCollection(ctx context.Context) error {
	if err := s.inner.RemoveCollection(); err != nil {
		return fmt.Errorf("failed to remove chroma collection: %w", err)
	}
	return nil
}

var _ rag.VectorStore = (*ChromaStore)(nil)
var _ rag.CollectionDropper = (*ChromaStore)(nil)
