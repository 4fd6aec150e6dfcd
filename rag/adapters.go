package rag

import (
	"context"
	"fmt"
	"maps"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// LangChainStore adapts a langchaingo vectorstores.VectorStore to the
// VectorStore interface. Hosted stores (Chroma, Pinecone) are reached through
// this adapter.
type LangChainStore struct {
	store vectorstores.VectorStore
}

// NewLangChainStore wraps a langchaingo vector store.
func NewLangChainStore(store vectorstores.VectorStore) *LangChainStore {
	return &LangChainStore{store: store}
}

// Underlying returns the wrapped langchaingo store.
func (s *LangChainStore) Underlying() vectorstores.VectorStore {
	return s.store
}

// AddDocuments ingests documents into the backing store.
func (s *LangChainStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	schemaDocs := make([]schema.Document, len(docs))
	for i, doc := range docs {
		schemaDocs[i] = schema.Document{
			PageContent: doc.Content,
			Metadata:    doc.Metadata,
		}
	}

	ids, err := s.store.AddDocuments(ctx, schemaDocs)
	if err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}
	return ids, nil
}

// SimilaritySearch runs a text similarity query against the backing store.
// Scores come from the store when it reports them.
func (s *LangChainStore) SimilaritySearch(ctx context.Context, query string, k int) ([]SearchResult, error) {
	schemaDocs, err := s.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	results := make([]SearchResult, len(schemaDocs))
	for i, doc := range schemaDocs {
		results[i] = SearchResult{
			Document: Document{
				ID:       documentID(doc, i),
				Content:  doc.PageContent,
				Metadata: copyMetadata(doc.Metadata),
			},
			Score: float64(doc.Score),
		}
	}
	return results, nil
}

// LangChainLoader adapts a langchaingo documentloaders.Loader to the
// DocumentLoader interface.
type LangChainLoader struct {
	loader documentloaders.Loader
	extra  map[string]any
}

// NewLangChainLoader wraps a langchaingo document loader. Extra metadata, if
// given, is stamped on every loaded document.
func NewLangChainLoader(loader documentloaders.Loader, extra map[string]any) *LangChainLoader {
	return &LangChainLoader{loader: loader, extra: extra}
}

// Load loads documents using the underlying langchaingo loader.
func (l *LangChainLoader) Load(ctx context.Context) ([]Document, error) {
	schemaDocs, err := l.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	docs := ConvertSchemaDocuments(schemaDocs)
	if l.extra != nil {
		for i := range docs {
			if docs[i].Metadata == nil {
				docs[i].Metadata = make(map[string]any)
			}
			maps.Copy(docs[i].Metadata, l.extra)
		}
	}
	return docs, nil
}

// ConvertSchemaDocuments converts langchaingo schema documents to Documents.
func ConvertSchemaDocuments(schemaDocs []schema.Document) []Document {
	docs := make([]Document, len(schemaDocs))
	for i, schemaDoc := range schemaDocs {
		docs[i] = Document{
			ID:       documentID(schemaDoc, i),
			Content:  schemaDoc.PageContent,
			Metadata: copyMetadata(schemaDoc.Metadata),
		}
	}
	return docs
}

// ToSchemaDocuments converts Documents to langchaingo schema documents.
func ToSchemaDocuments(docs []Document) []schema.Document {
	schemaDocs := make([]schema.Document, len(docs))
	for i, doc := range docs {
		schemaDocs[i] = schema.Document{
			PageContent: doc.Content,
			Metadata:    doc.Metadata,
		}
	}
	return schemaDocs
}

func documentID(doc schema.Document, fallback int) string {
	if source, ok := doc.Metadata["source"]; ok {
		return fmt.Sprintf("%v", source)
	}
	return fmt.Sprintf("doc_%d", fallback)
}

func copyMetadata(metadata map[string]any) map[string]any {
	result := make(map[string]any, len(metadata))
	maps.Copy(result, metadata)
	return result
}
