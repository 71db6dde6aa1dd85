package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Providers ProviderConfig
	Retrieval RetrievalConfig
	Ingest    IngestConfig
	Agent     AgentConfig
	Timeouts  TimeoutConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ConversationsDir   string
}

type DatabaseConfig struct {
	// Connection enables the pgvector index backend when set; empty keeps
	// the local on-disk index.
	Connection string
}

type ProviderConfig struct {
	// ModelProvider names the default LLM backend: openai, gemini,
	// ollama or deepseek.
	ModelProvider string
	LLMModel      string

	// EmbeddingProvider follows ModelProvider unless set explicitly.
	EmbeddingProvider string
	EmbeddingModel    string

	OpenAIKey  string
	OpenAIBase string

	GeminiKey  string
	GeminiBase string

	DeepSeekKey  string
	DeepSeekBase string

	OllamaBaseURL string
	OllamaModel   string

	Temperature float64
	MaxTokens   int
}

type RetrievalConfig struct {
	TopK         int
	HybridAlpha  float64
	VectorDBPath string
}

type IngestConfig struct {
	DocumentsDir string
	ChunkSize    int
	ChunkOverlap int
	// FileToolRoot confines the agent file tools; defaults to DocumentsDir.
	FileToolRoot string
	// SearchGatewayURL enables the web_search tool when set.
	SearchGatewayURL string
}

type AgentConfig struct {
	MaxIterations int
}

type TimeoutConfig struct {
	LLM        time.Duration
	Tool       time.Duration
	Request    time.Duration
	StreamIdle time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	modelProvider := getEnv("MODEL_PROVIDER", "")
	if modelProvider == "" {
		// No explicit choice: prefer gemini when its key is present,
		// fall back to openai.
		if getEnv("GEMINI_API_KEY", "") != "" {
			modelProvider = "gemini"
		} else {
			modelProvider = "openai"
		}
	}

	embeddingProvider := getEnv("EMBEDDING_PROVIDER", "")
	if embeddingProvider == "" {
		switch modelProvider {
		case "ollama":
			embeddingProvider = "ollama"
		case "gemini":
			embeddingProvider = "gemini"
		default:
			embeddingProvider = "openai"
		}
	}

	documentsDir := getEnv("DOCUMENTS_DIR", "./documents")

	return &Config{
		App: AppConfig{
			Port:               getEnv("PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			ConversationsDir:   getEnv("CONVERSATIONS_DIR", "./conversations"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DATABASE_URL", ""),
		},
		Providers: ProviderConfig{
			ModelProvider:     modelProvider,
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			EmbeddingProvider: embeddingProvider,
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBase:        getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			GeminiKey:         getEnv("GEMINI_API_KEY", ""),
			GeminiBase:        getEnv("GEMINI_API_BASE", "https://generativelanguage.googleapis.com"),
			DeepSeekKey:       getEnv("DEEPSEEK_API_KEY", ""),
			DeepSeekBase:      getEnv("DEEPSEEK_API_BASE", "https://api.deepseek.com"),
			OllamaBaseURL:     getEnv("OLLAMA_API_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_MODEL", "gemma3:4b"),
			Temperature:       getEnvAsFloat("TEMPERATURE", 0.7),
			MaxTokens:         getEnvAsInt("MAX_TOKENS", 1000),
		},
		Retrieval: RetrievalConfig{
			TopK:         getEnvAsInt("TOP_K", 3),
			HybridAlpha:  getEnvAsFloat("HYBRID_ALPHA", 0.5),
			VectorDBPath: getEnv("VECTOR_DB_PATH", "./vector_db"),
		},
		Ingest: IngestConfig{
			DocumentsDir:     documentsDir,
			ChunkSize:        getEnvAsInt("CHUNK_SIZE", 500),
			ChunkOverlap:     getEnvAsInt("CHUNK_OVERLAP", 50),
			FileToolRoot:     getEnv("FILE_TOOL_ROOT", documentsDir),
			SearchGatewayURL: getEnv("SEARCH_GATEWAY_URL", ""),
		},
		Agent: AgentConfig{
			MaxIterations: getEnvAsInt("MAX_ITERATIONS", 10),
		},
		Timeouts: TimeoutConfig{
			LLM:        getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			Tool:       getEnvAsDuration("TOOL_TIMEOUT", 30*time.Second),
			Request:    getEnvAsDuration("REQUEST_TIMEOUT", 300*time.Second),
			StreamIdle: getEnvAsDuration("STREAM_IDLE_TIMEOUT", 60*time.Second),
		},
	}
}

// Validate rejects configurations the server cannot start with. Remote
// providers need their API key; ollama runs without credentials.
func (c *Config) Validate() error {
	switch c.Providers.ModelProvider {
	case "openai":
		if c.Providers.OpenAIKey == "" {
			return fmt.Errorf("MODEL_PROVIDER=openai requires OPENAI_API_KEY")
		}
	case "gemini":
		if c.Providers.GeminiKey == "" {
			return fmt.Errorf("MODEL_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	case "deepseek":
		if c.Providers.DeepSeekKey == "" {
			return fmt.Errorf("MODEL_PROVIDER=deepseek requires DEEPSEEK_API_KEY")
		}
	case "ollama":
		// Local HTTP, no key.
	default:
		return fmt.Errorf("unsupported MODEL_PROVIDER: %s", c.Providers.ModelProvider)
	}

	switch c.Providers.EmbeddingProvider {
	case "openai":
		if c.Providers.OpenAIKey == "" {
			return fmt.Errorf("EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY")
		}
	case "gemini":
		if c.Providers.GeminiKey == "" {
			return fmt.Errorf("EMBEDDING_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER: %s", c.Providers.EmbeddingProvider)
	}

	if c.Retrieval.HybridAlpha < 0 || c.Retrieval.HybridAlpha > 1 {
		return fmt.Errorf("HYBRID_ALPHA must be within [0,1], got %v", c.Retrieval.HybridAlpha)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("TOP_K must be >= 1, got %d", c.Retrieval.TopK)
	}
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("CHUNK_SIZE must be >= 1, got %d", c.Ingest.ChunkSize)
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("MAX_ITERATIONS must be >= 1, got %d", c.Agent.MaxIterations)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	// Accept both bare seconds ("120") and Go duration strings ("120s").
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
