package rag

import (
	"context"
	"time"
)

// Document is a unit of ingestible content with its metadata. Embedding is
// populated by stores that compute vectors locally; hosted stores leave it
// empty.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// SearchResult pairs a retrieved document with its similarity score.
// Score semantics follow the backing store (cosine similarity for the
// in-memory store, backend-reported score for hosted stores).
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Embedder computes vector embeddings for text. langchaingo's
// embeddings.Embedder satisfies this interface.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the minimal surface the agents need from a vector database.
type VectorStore interface {
	// AddDocuments ingests documents, returning the ids assigned by the store.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// SimilaritySearch returns up to k documents ranked by similarity to the
	// query text, with scores.
	SimilaritySearch(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// CollectionDropper is implemented by stores whose backing collection can be
// removed wholesale. Pipelines that build throwaway collections assert for it.
type CollectionDropper interface {
	DropCollection(ctx context.Context) error
}

// DocumentLoader loads documents from some source (CSV file, web page, EML
// message).
type DocumentLoader interface {
	Load(ctx context.Context) ([]Document, error)
}

// Retriever retrieves documents relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// StoreStats reports basic vector store statistics.
type StoreStats struct {
	TotalDocuments int       `json:"total_documents"`
	Dimension      int       `json:"dimension"`
	LastUpdated    time.Time `json:"last_updated"`
}
