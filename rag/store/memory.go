package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheetflow-ai/sheetflow/rag"
)

const indexFileName = "index.json"

// MemoryStore is an in-memory vector store with cosine similarity search and
// optional persistence to a local directory, so an index can be reused
// without recomputing embeddings.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     []rag.Document
	embedder rag.Embedder
}

// NewMemoryStore creates an empty in-memory store backed by the given
// embedder.
func NewMemoryStore(embedder rag.Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// AddDocuments embeds and stores documents. Documents that already carry an
// embedding are stored as-is.
func (s *MemoryStore) AddDocuments(ctx context.Context, docs []rag.Document) ([]string, error) {
	var toEmbed []int
	var texts []string
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			toEmbed = append(toEmbed, i)
			texts = append(texts, doc.Content)
		}
	}

	if len(texts) > 0 {
		if s.embedder == nil {
			return nil, fmt.Errorf("no embedder configured and documents have no embeddings")
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed documents: %w", err)
		}
		for j, i := range toEmbed {
			docs[i].Embedding = vectors[j]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(docs))
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		ids[i] = docs[i].ID
		s.docs = append(s.docs, docs[i])
	}
	return ids, nil
}

// SimilaritySearch embeds the query and returns the k nearest documents by
// cosine similarity.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int) ([]rag.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]rag.SearchResult, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, rag.SearchResult{
			Document: doc,
			Score:    cosineSimilarity(queryVec, doc.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Delete removes documents by id.
func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.docs[:0]
	for _, doc := range s.docs {
		if !idSet[doc.ID] {
			kept = append(kept, doc)
		}
	}
	s.docs = kept
	return nil
}

// DropCollection discards all stored documents.
func (s *MemoryStore) DropCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return nil
}

// Stats reports the current document count and embedding dimension.
func (s *MemoryStore) Stats() rag.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := rag.StoreStats{
		TotalDocuments: len(s.docs),
		LastUpdated:    time.Now(),
	}
	if len(s.docs) > 0 {
		stats.Dimension = len(s.docs[0].Embedding)
	}
	return stats
}

// SaveLocal persists the index (documents plus embeddings) to dir.
func (s *MemoryStore) SaveLocal(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.Marshal(s.docs)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, indexFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// LoadLocal reads a previously saved index from dir into a new store backed
// by the given embedder.
func LoadLocal(dir string, embedder rag.Embedder) (*MemoryStore, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var docs []rag.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}

	s := NewMemoryStore(embedder)
	s.docs = docs
	return s, nil
}

// LoadInto reads a previously saved index from dir into this store,
// replacing its current documents. A missing index is not an error.
func (s *MemoryStore) LoadInto(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read index: %w", err)
	}

	var docs []rag.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("failed to unmarshal index: %w", err)
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	return nil
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
