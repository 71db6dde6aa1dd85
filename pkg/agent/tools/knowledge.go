package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"agentic-rag-be/pkg/rag/search"
	"agentic-rag-be/pkg/store"
)

// previewRunes bounds the per-passage preview in structured tool output.
const previewRunes = 200

// Retriever is the slice of the retrieval layer the knowledge tool needs.
type Retriever interface {
	Search(ctx context.Context, query string, k int, method search.Method) ([]store.Passage, error)
}

// KnowledgeRetrieve searches the local knowledge base through the hybrid
// retriever.
type KnowledgeRetrieve struct {
	retriever Retriever
	topK      int
}

// NewKnowledgeRetrieve creates the knowledge base search tool.
func NewKnowledgeRetrieve(retriever Retriever, topK int) *KnowledgeRetrieve {
	if topK <= 0 {
		topK = 3
	}
	return &KnowledgeRetrieve{retriever: retriever, topK: topK}
}

func (t *KnowledgeRetrieve) Name() string { return "knowledge_retrieve" }

func (t *KnowledgeRetrieve) Description() string {
	return "Search the local knowledge base for passages relevant to a query. Input: the search query."
}

// Invoke runs a hybrid search and renders a numbered passage summary.
func (t *KnowledgeRetrieve) Invoke(ctx context.Context, input string) (*Result, error) {
	query := queryFromInput(input)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	passages, err := t.retriever.Search(ctx, query, t.topK, search.MethodHybrid)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return &Result{Text: "No relevant passages found in the knowledge base."}, nil
	}

	var sb strings.Builder
	data := make([]map[string]interface{}, len(passages))
	for i, p := range passages {
		preview := truncateRunes(strings.ReplaceAll(p.Text, "\n", " "), previewRunes)
		fmt.Fprintf(&sb, "%d. [%s] %s\n", p.Rank, p.Source, preview)
		data[i] = map[string]interface{}{
			"source":  p.Source,
			"preview": preview,
			"score":   p.Score,
			"rank":    p.Rank,
		}
	}
	return &Result{Text: sb.String(), Data: data}, nil
}

// truncateRunes cuts s to at most n runes, appending an ellipsis when text
// was dropped.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
