package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sheetflow-ai/sheetflow/config"
	"github.com/sheetflow-ai/sheetflow/log"
	"github.com/sheetflow-ai/sheetflow/trace"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

var (
	cfg     *config.Config
	envFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sheetflow",
		Short:         "LLM assisted spreadsheet extraction toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(envFile)
			if err != nil {
				return err
			}
			if verbose {
				log.SetLogLevel(log.LogLevelDebug)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to the .env file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newExtractCmd(),
		newRagCmd(),
		newFinetuneCmd(),
		newModelsCmd(),
		newEmailCmd(),
		newFlowCmd(),
		newRunsCmd(),
	)
	return cmd
}

// newLLM builds the chat model client from the configuration.
func newLLM() (*openai.LLM, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	return openai.New(
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
}

// newEmbedder builds the embedding client from the configuration.
func newEmbedder() (*embeddings.EmbedderImpl, error) {
	llm, err := newLLM()
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// newTracer returns the configured tracer, or the no-op one when tracing is
// disabled.
func newTracer() trace.Tracer {
	if !cfg.TracingEnabled {
		return trace.NoopTracer{}
	}
	return trace.NewClient(trace.Options{
		Endpoint: cfg.TracingEndpoint,
		APIKey:   cfg.TracingAPIKey,
		Project:  cfg.TracingProject,
	})
}
