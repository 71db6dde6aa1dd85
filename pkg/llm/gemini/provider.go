package gemini

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

type GeminiProvider struct {
	BaseURL  string
	ApiKey   string
	Model    string
	Client   *http.Client
	defaults llm.Options
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(baseURL, apiKey, model string, defaults llm.Options) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	defaults.Model = model
	return &GeminiProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		ApiKey:  apiKey,
		Model:   model,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
		defaults: defaults,
	}
}

// --- Request/Response structs (Internal to this package) ---

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) buildRequest(prompt string, opts []llm.Option) (string, []byte, error) {
	options := p.defaults.Apply(opts...)

	model := p.Model
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:   options.Temperature,
			StopSequences: options.Stop,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.GenerationConfig.MaxOutputTokens = options.MaxTokens
	}

	payload, err := json.Marshal(reqPayload)
	return model, payload, err
}

func (p *GeminiProvider) post(ctx context.Context, endpoint string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, llm.ClassifyTransport("gemini", err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, llm.ClassifyStatus("gemini", resp.StatusCode, string(bodyBytes))
	}
	return resp, nil
}

func textOf(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	return sb.String()
}

// --- Interface Implementation ---

func (p *GeminiProvider) Complete(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	model, payload, err := p.buildRequest(prompt, opts)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.BaseURL, model)
	resp, err := p.post(ctx, endpoint, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.NewError("gemini", llm.ErrKindBadResponse, fmt.Errorf("read response: %w", err))
	}

	var genResp generateResponse
	if err := json.Unmarshal(bodyBytes, &genResp); err != nil {
		return "", llm.NewError("gemini", llm.ErrKindBadResponse, fmt.Errorf("unmarshal response: %w", err))
	}
	if len(genResp.Candidates) == 0 {
		return "", llm.NewError("gemini", llm.ErrKindBadResponse, fmt.Errorf("no candidates in response"))
	}

	return textOf(genResp), nil
}

func (p *GeminiProvider) StreamComplete(ctx context.Context, prompt string, opts ...llm.Option) (<-chan llm.Chunk, error) {
	model, payload, err := p.buildRequest(prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", p.BaseURL, model)
	resp, err := p.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		// With alt=sse each line is "data: {chunk}" and the stream ends on EOF.
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var chunk generateResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				out <- llm.Chunk{Err: llm.NewError("gemini", llm.ErrKindBadResponse, fmt.Errorf("unmarshal stream chunk: %w", err))}
				return
			}
			text := textOf(chunk)
			if text == "" {
				continue
			}
			select {
			case out <- llm.Chunk{Content: text}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			out <- llm.Chunk{Err: llm.ClassifyTransport("gemini", err)}
		}
	}()

	return out, nil
}
