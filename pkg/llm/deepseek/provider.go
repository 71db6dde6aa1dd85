package deepseek

import (
	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/llm/openai"
)

// DeepSeek speaks the OpenAI chat-completions wire format with its own
// endpoint and model catalogue. reasoning_content deltas emitted by the
// reasoner models are already skipped by the shared stream reader.
const defaultBaseURL = "https://api.deepseek.com"

func NewProvider(baseURL, apiKey, model string, defaults llm.Options) *openai.Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "deepseek-chat"
	}
	p := openai.NewProvider(baseURL, apiKey, model, defaults)
	p.Name = "deepseek"
	return p
}
