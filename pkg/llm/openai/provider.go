package openai

import (
	"agentic-rag-be/pkg/llm"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider implements llm.LLMProvider for OpenAI-compatible chat APIs.
// The wire format is shared by several remote backends; Name distinguishes
// them in logs and error classification.
type Provider struct {
	Name     string
	BaseURL  string
	APIKey   string
	Model    string
	Client   *http.Client
	defaults llm.Options
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(baseURL, apiKey, model string, defaults llm.Options) *Provider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	defaults.Model = model
	return &Provider{
		Name:    "openai",
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
		defaults: defaults,
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *Provider) buildRequest(prompt string, stream bool, opts []llm.Option) ([]byte, error) {
	options := p.defaults.Apply(opts...)

	model := p.Model
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: options.Temperature,
		Stop:        options.Stop,
		Stream:      stream,
	}
	if options.MaxTokens > 0 {
		reqPayload.MaxTokens = options.MaxTokens
	}

	return json.Marshal(reqPayload)
}

func (p *Provider) post(ctx context.Context, payload []byte) (*http.Response, error) {
	url := p.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, llm.ClassifyTransport(p.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, llm.ClassifyStatus(p.Name, resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

// --- Interface Implementation ---

func (p *Provider) Complete(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	payload, err := p.buildRequest(prompt, false, opts)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.post(ctx, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.NewError(p.Name, llm.ErrKindBadResponse, fmt.Errorf("read response: %w", err))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return "", llm.NewError(p.Name, llm.ErrKindBadResponse, fmt.Errorf("unmarshal response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return "", llm.NewError(p.Name, llm.ErrKindBadResponse, fmt.Errorf("empty choices in response"))
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (p *Provider) StreamComplete(ctx context.Context, prompt string, opts ...llm.Option) (<-chan llm.Chunk, error) {
	payload, err := p.buildRequest(prompt, true, opts)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		// The backend streams SSE lines: "data: {json}" terminated by "data: [DONE]".
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				out <- llm.Chunk{Err: llm.NewError(p.Name, llm.ErrKindBadResponse, fmt.Errorf("unmarshal stream chunk: %w", err))}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			// reasoning_content (deepseek-reasoner) is interim thinking, not answer text.
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			select {
			case out <- llm.Chunk{Content: content}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			out <- llm.Chunk{Err: llm.ClassifyTransport(p.Name, err)}
		}
	}()

	return out, nil
}
