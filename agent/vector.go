package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/sheetflow-ai/sheetflow/log"
	"github.com/sheetflow-ai/sheetflow/rag"
)

const vectorSystemPrompt = `You are a helpful assistant. Answer the question based on the provided context. If you cannot answer based on the context, say so.`

// Answer is a retrieval augmented answer with its supporting sources.
type Answer struct {
	Text    string
	Sources []string
}

// underlyingStore is implemented by stores backed by a langchain vector
// store, which lets Ask run through a retrieval QA chain.
type underlyingStore interface {
	Underlying() vectorstores.VectorStore
}

// VectorAgent ingests documents into a vector store and answers questions
// against them.
type VectorAgent struct {
	llm   llms.Model
	store rag.VectorStore
	topK  int
}

// NewVectorAgent creates an agent over the given store. topK defaults to 4.
func NewVectorAgent(llm llms.Model, store rag.VectorStore, topK int) *VectorAgent {
	if topK <= 0 {
		topK = 4
	}
	return &VectorAgent{llm: llm, store: store, topK: topK}
}

// Ingest adds documents to the store and returns their ids.
func (a *VectorAgent) Ingest(ctx context.Context, docs []rag.Document) ([]string, error) {
	ids, err := a.store.AddDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest documents: %w", err)
	}
	log.Info("ingested %d documents", len(ids))
	return ids, nil
}

// IngestFrom loads documents with the loader and ingests them.
func (a *VectorAgent) IngestFrom(ctx context.Context, loader rag.DocumentLoader) ([]string, error) {
	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return a.Ingest(ctx, docs)
}

// Search returns the k most similar documents with their scores.
func (a *VectorAgent) Search(ctx context.Context, query string, k int) ([]rag.SearchResult, error) {
	if k <= 0 {
		k = a.topK
	}
	return a.store.SimilaritySearch(ctx, query, k)
}

// Ask answers a question over the ingested documents. Stores backed by a
// langchain vector store go through a retrieval QA chain; anything else gets
// the retrieved context stuffed into the prompt.
func (a *VectorAgent) Ask(ctx context.Context, question string) (Answer, error) {
	results, err := a.store.SimilaritySearch(ctx, question, a.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieval failed: %w", err)
	}

	sources := make([]string, 0, len(results))
	for _, r := range results {
		if src, ok := r.Document.Metadata["source"].(string); ok && src != "" {
			sources = append(sources, src)
		} else if r.Document.ID != "" {
			sources = append(sources, r.Document.ID)
		}
	}

	if backed, ok := a.store.(underlyingStore); ok {
		chain := chains.NewRetrievalQAFromLLM(a.llm,
			vectorstores.ToRetriever(backed.Underlying(), a.topK))
		text, err := chains.Run(ctx, chain, question)
		if err != nil {
			return Answer{}, fmt.Errorf("retrieval QA failed: %w", err)
		}
		return Answer{Text: strings.TrimSpace(text), Sources: sources}, nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, r.Document.Content)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, vectorSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Context:\n%s\nQuestion: %s", sb.String(), question)),
	}
	resp, err := a.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return Answer{}, fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, fmt.Errorf("model returned no choices")
	}
	return Answer{Text: strings.TrimSpace(resp.Choices[0].Content), Sources: sources}, nil
}
