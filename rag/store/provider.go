package store

import (
	"fmt"

	"github.com/sheetflow-ai/sheetflow/rag"
)

// Provider identifies a vector store backend.
type Provider string

const (
	// ProviderMemory is the in-process store with local save/reload.
	ProviderMemory Provider = "memory"
	// ProviderChroma is a Chroma server.
	ProviderChroma Provider = "chroma"
	// ProviderPinecone is a hosted Pinecone index.
	ProviderPinecone Provider = "pinecone"
)

// ParseProvider maps a provider name to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderMemory, ProviderChroma, ProviderPinecone:
		return Provider(name), nil
	default:
		return "", fmt.Errorf("unknown vector store provider: %q", name)
	}
}

// Options carries the per-provider connection settings.
type Options struct {
	Provider Provider
	Chroma   ChromaOptions
	Pinecone PineconeOptions
}

// Open constructs the vector store selected by opts.Provider.
func Open(opts Options, embedder rag.Embedder) (rag.VectorStore, error) {
	switch opts.Provider {
	case ProviderMemory:
		return NewMemoryStore(embedder), nil
	case ProviderChroma:
		return NewChromaStore(opts.Chroma, embedder)
	case ProviderPinecone:
		return NewPineconeStore(opts.Pinecone, embedder)
	default:
		return nil, fmt.Errorf("unknown vector store provider: %q", opts.Provider)
	}
}
