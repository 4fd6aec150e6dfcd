package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sheetflow-ai/sheetflow/agent"
	"github.com/sheetflow-ai/sheetflow/rag"
	"github.com/sheetflow-ai/sheetflow/rag/loader"
	"github.com/sheetflow-ai/sheetflow/rag/store"
)

func newRagCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Ingest documents and answer questions over a vector store",
	}
	cmd.PersistentFlags().StringVar(&provider, "store", "memory", "vector store: memory, chroma or pinecone")

	openStore := func() (rag.VectorStore, error) {
		p, err := store.ParseProvider(provider)
		if err != nil {
			return nil, err
		}
		embedder, err := newEmbedder()
		if err != nil {
			return nil, err
		}
		return store.Open(store.Options{
			Provider: p,
			Chroma:   store.ChromaOptions{URL: cfg.ChromaURL, Collection: cfg.ChromaCollection},
			Pinecone: store.PineconeOptions{
				APIKey: cfg.PineconeAPIKey, Host: cfg.PineconeHost, Namespace: cfg.PineconeIndex,
			},
		}, embedder)
	}

	ingest := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Load CSV, EML or web documents into the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := openStore()
			if err != nil {
				return err
			}
			llm, err := newLLM()
			if err != nil {
				return err
			}
			a := agent.NewVectorAgent(llm, vs, 0)

			total := 0
			for _, arg := range args {
				var docs []rag.Document
				switch {
				case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
					docs, err = loader.NewWebLoader([]string{arg}).Load(cmd.Context())
				case strings.HasSuffix(strings.ToLower(arg), ".eml"):
					docs, err = loader.NewEMLLoader([]string{arg}).Load(cmd.Context())
				default:
					docs, err = loader.NewCSVLoader(arg).Load(cmd.Context())
				}
				if err != nil {
					return err
				}
				ids, err := a.Ingest(cmd.Context(), docs)
				if err != nil {
					return err
				}
				total += len(ids)
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("ingested %d documents", total)))
			return saveIfLocal(vs)
		},
	}

	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question over the ingested documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := openStore()
			if err != nil {
				return err
			}
			if err := loadIfLocal(vs); err != nil {
				return err
			}
			llm, err := newLLM()
			if err != nil {
				return err
			}

			answer, err := agent.NewVectorAgent(llm, vs, 0).Ask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Println(faintStyle.Render("sources: " + strings.Join(answer.Sources, ", ")))
			}
			return nil
		},
	}

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the most similar documents with scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := openStore()
			if err != nil {
				return err
			}
			if err := loadIfLocal(vs); err != nil {
				return err
			}

			results, err := vs.SimilaritySearch(cmd.Context(), args[0], 4)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%.3f  %s\n", r.Score, firstLine(r.Document.Content))
			}
			return nil
		},
	}

	cmd.AddCommand(ingest, ask, search)
	return cmd
}

// saveIfLocal persists memory stores to the configured directory.
func saveIfLocal(vs rag.VectorStore) error {
	if m, ok := vs.(*store.MemoryStore); ok {
		return m.SaveLocal(cfg.VectorStorageDir)
	}
	return nil
}

// loadIfLocal restores a previously saved memory store.
func loadIfLocal(vs rag.VectorStore) error {
	if m, ok := vs.(*store.MemoryStore); ok {
		return m.LoadInto(cfg.VectorStorageDir)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
