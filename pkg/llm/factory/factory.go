package factory

import (
	"fmt"
	"strings"

	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/llm/deepseek"
	"agentic-rag-be/pkg/llm/gemini"
	"agentic-rag-be/pkg/llm/ollama"
	"agentic-rag-be/pkg/llm/openai"
)

// Config carries the per-backend connection settings plus shared generation
// defaults. The caller (bootstrap) fills it from the runtime configuration.
type Config struct {
	Model string // default chat model for remote providers

	OpenAIBaseURL string
	OpenAIKey     string

	GeminiBaseURL string
	GeminiKey     string

	DeepSeekBaseURL string
	DeepSeekKey     string

	OllamaBaseURL string
	OllamaModel   string

	Defaults llm.Options // temperature / max tokens applied when the caller omits options
}

// NewLLMProvider builds the provider registered under the given name.
func NewLLMProvider(providerType string, cfg Config) (llm.LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(providerType)) {
	case "openai":
		return openai.NewProvider(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.Model, cfg.Defaults), nil
	case "gemini":
		return gemini.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiKey, cfg.Model, cfg.Defaults), nil
	case "deepseek":
		return deepseek.NewProvider(cfg.DeepSeekBaseURL, cfg.DeepSeekKey, cfg.Model, cfg.Defaults), nil
	case "ollama":
		return ollama.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Defaults), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
