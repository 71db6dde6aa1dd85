package ollama

import (
	"agentic-rag-be/pkg/llm"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
	defaults  llm.Options
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string, defaults llm.Options) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	defaults.Model = modelName
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
		defaults: defaults,
	}
}

// Wire types for Ollama's /api/chat endpoint.

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (o *OllamaProvider) buildRequest(prompt string, stream bool, opts []llm.Option) ([]byte, error) {
	options := o.defaults.Apply(opts...)

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			Stop:        options.Stop,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	return json.Marshal(reqPayload)
}

func (o *OllamaProvider) post(ctx context.Context, payload []byte) (*http.Response, error) {
	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, llm.ClassifyTransport("ollama", err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, llm.ClassifyStatus("ollama", resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

func (o *OllamaProvider) Complete(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	payload, err := o.buildRequest(prompt, false, opts)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	resp, err := o.post(ctx, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.NewError("ollama", llm.ErrKindBadResponse, fmt.Errorf("read response: %w", err))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return "", llm.NewError("ollama", llm.ErrKindBadResponse, fmt.Errorf("unmarshal response: %w", err))
	}

	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) StreamComplete(ctx context.Context, prompt string, opts ...llm.Option) (<-chan llm.Chunk, error) {
	payload, err := o.buildRequest(prompt, true, opts)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := o.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		// Ollama streams newline-delimited JSON objects until done=true.
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				out <- llm.Chunk{Err: llm.NewError("ollama", llm.ErrKindBadResponse, fmt.Errorf("unmarshal stream chunk: %w", err))}
				return
			}
			if chunk.Message.Content != "" {
				select {
				case out <- llm.Chunk{Content: chunk.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			out <- llm.Chunk{Err: llm.ClassifyTransport("ollama", err)}
		}
	}()

	return out, nil
}
