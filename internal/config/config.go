// Package config loads application configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	// HTTP server
	ServerAddr string

	// Ollama
	OllamaBaseURL string
	EmbedModel    string
	CodegenModel  string

	// Index storage: "memory", "sqlite" or "pgvector".
	StoreBackend     string
	KnowledgeBaseDir string
	PostgresDSN      string
	EmbeddingDim     int

	// Summaries ingestion
	SummariesDir   string
	WatchSummaries bool

	// Code execution
	EnableRunner  bool
	PythonPath    string
	RunnerTimeout time.Duration

	// Retrieval
	DefaultTopK int
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[INFO] loaded configuration from .env")
	}

	return &Config{
		ServerAddr:       getEnv("SERVER_ADDR", ":8080"),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbedModel:       getEnv("EMBED_MODEL", "nomic-embed-text"),
		CodegenModel:     getEnv("CODEGEN_MODEL", "qwen2.5-coder:7b"),
		StoreBackend:     getEnv("STORE_BACKEND", "memory"),
		KnowledgeBaseDir: getEnv("KNOWLEDGE_BASE_DIR", "./data/knowledge_base"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		EmbeddingDim:     getEnvAsInt("EMBEDDING_DIM", 768),
		SummariesDir:     getEnv("SUMMARIES_DIR", "./data/summaries"),
		WatchSummaries:   getEnvAsBool("WATCH_SUMMARIES", true),
		EnableRunner:     getEnvAsBool("ENABLE_RUNNER", false),
		PythonPath:       getEnv("PYTHON_PATH", "python3"),
		RunnerTimeout:    time.Duration(getEnvAsInt("RUNNER_TIMEOUT_SECONDS", 30)) * time.Second,
		DefaultTopK:      getEnvAsInt("DEFAULT_TOP_K", 3),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[WARN] invalid integer for %s: %q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("[WARN] invalid boolean for %s: %q, using %v", key, value, fallback)
		return fallback
	}
	return b
}
