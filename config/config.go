// Package config loads sheetflow configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sheetflow-ai/sheetflow/log"
)

// Config holds every knob the agents and pipelines read. API keys are never
// embedded in source; they come from the environment.
type Config struct {
	// OpenAI
	OpenAIAPIKey   string
	ChatModel      string
	EmbeddingModel string

	// Fine-tuning
	FineTuningBaseModel string
	FineTunedModel      string

	// Vector stores
	ChromaURL        string
	ChromaCollection string
	PineconeAPIKey   string
	PineconeHost     string
	PineconeIndex    string
	VectorStorageDir string

	// Tracing
	TracingEnabled  bool
	TracingEndpoint string
	TracingAPIKey   string
	TracingProject  string

	// LangFlow
	LangFlowURL    string
	LangFlowAPIKey string

	// Run history / caching
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string

	// File locations
	InputDir  string
	OutputDir string
}

// Load reads configuration from the environment. If a .env file exists at
// path it is loaded first; a missing file is not an error (shell environments
// and CI set variables directly).
func Load(path string) (*Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		log.Debug("no %s file found, using process environment", path)
	}

	cfg := &Config{
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		ChatModel:      getenvDefault("SHEETFLOW_CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getenvDefault("SHEETFLOW_EMBEDDING_MODEL", "text-embedding-3-small"),

		FineTuningBaseModel: getenvDefault("SHEETFLOW_FINE_TUNING_BASE_MODEL", "gpt-4o-mini-2024-07-18"),
		FineTunedModel:      os.Getenv("SHEETFLOW_FINE_TUNED_MODEL"),

		ChromaURL:        getenvDefault("CHROMA_URL", "http://localhost:8000"),
		ChromaCollection: getenvDefault("CHROMA_COLLECTION", "sheetflow"),
		PineconeAPIKey:   os.Getenv("PINECONE_API_KEY"),
		PineconeHost:     os.Getenv("PINECONE_HOST"),
		PineconeIndex:    os.Getenv("PINECONE_INDEX"),
		VectorStorageDir: getenvDefault("SHEETFLOW_VECTOR_DIR", "./assets/vector_db"),

		TracingEnabled:  getenvBool("SHEETFLOW_TRACING", false),
		TracingEndpoint: getenvDefault("SHEETFLOW_TRACING_ENDPOINT", "https://api.smith.langchain.com"),
		TracingAPIKey:   os.Getenv("SHEETFLOW_TRACING_API_KEY"),
		TracingProject:  getenvDefault("SHEETFLOW_TRACING_PROJECT", "sheetflow"),

		LangFlowURL:    getenvDefault("LANGFLOW_URL", "http://127.0.0.1:7860"),
		LangFlowAPIKey: os.Getenv("LANGFLOW_API_KEY"),

		SQLitePath:  getenvDefault("SHEETFLOW_SQLITE_PATH", "./sheetflow.db"),
		PostgresDSN: os.Getenv("SHEETFLOW_POSTGRES_DSN"),
		RedisAddr:   os.Getenv("SHEETFLOW_REDIS_ADDR"),

		InputDir:  getenvDefault("SHEETFLOW_INPUT_DIR", "./assets/docs_input"),
		OutputDir: getenvDefault("SHEETFLOW_OUTPUT_DIR", "./assets/docs_output"),
	}

	return cfg, nil
}

// RequireOpenAI returns an error when no OpenAI API key is configured.
// Commands that talk to the vendor API call this before constructing clients.
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required but not set")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
