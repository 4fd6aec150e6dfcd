package store

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores/pinecone"

	"github.com/sheetflow-ai/sheetflow/rag"
)

// PineconeOptions configures the Pinecone connection. Host is the index host
// from the Pinecone console; Namespace isolates documents within the index.
type PineconeOptions struct {
	APIKey    string
	Host      string
	Namespace string
}

// NewPineconeStore connects to a hosted Pinecone index.
func NewPineconeStore(opts PineconeOptions, embedder rag.Embedder) (*rag.LangChainStore, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}
	if opts.Host == "" {
		return nil, fmt.Errorf("pinecone host is required")
	}

	inner, err := pinecone.New(
		pinecone.WithAPIKey(opts.APIKey),
		pinecone.WithHost(opts.Host),
		pinecone.WithEmbedder(embeddings.Embedder(embedder)),
		pinecone.WithNameSpace(opts.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open pinecone index: %w", err)
	}

	return rag.NewLangChainStore(inner), nil
}
