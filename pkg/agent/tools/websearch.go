package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DisabledMessage is the observation returned when the search gateway is not
// configured. It is an answer, not an error, so the agent can route around
// the missing capability.
const DisabledMessage = "Web search is disabled: no search gateway is configured."

// maxSearchResults caps how many gateway hits reach the model.
const maxSearchResults = 5

// WebSearch queries an external search gateway (SearXNG-compatible JSON API).
type WebSearch struct {
	gatewayURL string
	client     *http.Client
}

// NewWebSearch creates the web search tool. An empty gatewayURL registers
// the tool in disabled mode.
func NewWebSearch(gatewayURL string) *WebSearch {
	return &WebSearch{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *WebSearch) Name() string { return "web_search" }

func (t *WebSearch) Description() string {
	return "Search the web for current information. Input: the search query."
}

type gatewayResponse struct {
	Results []gatewayResult `json:"results"`
}

type gatewayResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Invoke performs the gateway search and renders the top results.
func (t *WebSearch) Invoke(ctx context.Context, input string) (*Result, error) {
	if t.gatewayURL == "" {
		return &Result{Text: DisabledMessage}, nil
	}
	query := queryFromInput(input)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", t.gatewayURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search gateway error (status %d)", resp.StatusCode)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return &Result{Text: "No results found."}, nil
	}

	results := parsed.Results
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}

	var sb strings.Builder
	data := make([]map[string]interface{}, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.URL, r.Content)
		data[i] = map[string]interface{}{
			"title": r.Title,
			"url":   r.URL,
			"rank":  i + 1,
		}
	}
	return &Result{Text: sb.String(), Data: data}, nil
}
