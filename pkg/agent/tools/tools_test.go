package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentic-rag-be/pkg/rag/search"
	"agentic-rag-be/pkg/store"
)

type staticTool struct {
	name string
	desc string
}

func (s staticTool) Name() string        { return s.name }
func (s staticTool) Description() string { return s.desc }
func (s staticTool) Invoke(ctx context.Context, input string) (*Result, error) {
	return &Result{Text: s.name}, nil
}

func TestRegistryPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(staticTool{name: "zeta", desc: "z"})
	reg.Register(staticTool{name: "alpha", desc: "a"})
	reg.Register(staticTool{name: "mid", desc: "m"})

	var names []string
	for _, tool := range reg.List() {
		names = append(names, tool.Name())
	}
	want := []string{"zeta", "alpha", "mid"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}

	catalogue := reg.Catalogue()
	if !strings.Contains(catalogue, "- zeta: z\n") {
		t.Errorf("catalogue missing entry: %q", catalogue)
	}
	zIdx := strings.Index(catalogue, "zeta")
	aIdx := strings.Index(catalogue, "alpha")
	if zIdx > aIdx {
		t.Error("catalogue does not follow registration order")
	}

	if _, ok := reg.Get("alpha"); !ok {
		t.Error("Get failed for registered tool")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get returned a tool for an unknown name")
	}
}

type fixedRetriever struct {
	gotQuery string
	passages []store.Passage
	err      error
}

func (f *fixedRetriever) Search(ctx context.Context, query string, k int, method search.Method) ([]store.Passage, error) {
	f.gotQuery = query
	return f.passages, f.err
}

func TestKnowledgeRetrieveParsesJSONInput(t *testing.T) {
	retriever := &fixedRetriever{passages: []store.Passage{
		{Text: "Attention is all you need.", Source: "nn.md", Score: 0.9, Rank: 1},
	}}
	tool := NewKnowledgeRetrieve(retriever, 3)

	result, err := tool.Invoke(context.Background(), `{"query": "transformers"}`)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if retriever.gotQuery != "transformers" {
		t.Errorf("query = %q, want transformers", retriever.gotQuery)
	}
	if !strings.Contains(result.Text, "[nn.md]") {
		t.Errorf("summary missing source: %q", result.Text)
	}
	if len(result.Data) != 1 || result.Data[0]["rank"] != 1 {
		t.Errorf("unexpected structured data: %v", result.Data)
	}
}

func TestKnowledgeRetrieveRawInput(t *testing.T) {
	retriever := &fixedRetriever{}
	tool := NewKnowledgeRetrieve(retriever, 3)

	result, err := tool.Invoke(context.Background(), "  plain question  ")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if retriever.gotQuery != "plain question" {
		t.Errorf("query = %q, want trimmed raw input", retriever.gotQuery)
	}
	if !strings.Contains(result.Text, "No relevant passages") {
		t.Errorf("empty retrieval should report no passages, got %q", result.Text)
	}
}

func TestWebSearchDisabledWithoutGateway(t *testing.T) {
	tool := NewWebSearch("")
	result, err := tool.Invoke(context.Background(), "anything")
	if err != nil {
		t.Fatalf("disabled tool must not error: %v", err)
	}
	if result.Text != DisabledMessage {
		t.Errorf("got %q, want the canonical disabled message", result.Text)
	}
}

func TestWebSearchFormatsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("q = %q, want golang", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		fmt.Fprint(w, `{"results":[
			{"title":"Go","url":"https://go.dev","content":"The Go programming language"},
			{"title":"Tour","url":"https://go.dev/tour","content":"A tour of Go"},
			{"title":"r3","url":"u3","content":"c3"},
			{"title":"r4","url":"u4","content":"c4"},
			{"title":"r5","url":"u5","content":"c5"},
			{"title":"r6","url":"u6","content":"c6"}
		]}`)
	}))
	defer server.Close()

	tool := NewWebSearch(server.URL)
	result, err := tool.Invoke(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(result.Text, "1. Go\n   https://go.dev") {
		t.Errorf("results not numbered: %q", result.Text)
	}
	if len(result.Data) != 5 {
		t.Errorf("expected top 5 results, got %d", len(result.Data))
	}
	if result.Data[0]["rank"] != 1 {
		t.Errorf("first result rank = %v, want 1", result.Data[0]["rank"])
	}
}

func TestFileReadConfinedToRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewFileRead(root)

	result, err := tool.Invoke(context.Background(), "note.txt")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("content = %q, want hello", result.Text)
	}

	if _, err := tool.Invoke(context.Background(), "../../etc/passwd"); err == nil {
		t.Error("traversal outside the root must not succeed")
	}
}

func TestFileReadTruncatesLongFiles(t *testing.T) {
	root := t.TempDir()
	long := strings.Repeat("x", maxReadRunes+100)
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(long), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewFileRead(root)
	result, err := tool.Invoke(context.Background(), "big.txt")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(result.Text, "[truncated") {
		t.Error("long file output missing truncation marker")
	}
	if strings.Count(result.Text, "x") != maxReadRunes {
		t.Errorf("expected exactly %d payload runes", maxReadRunes)
	}
}

func TestFileListEntries(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("aa"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	tool := NewFileList(root)
	result, err := tool.Invoke(context.Background(), "")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(result.Text, "a.txt") || !strings.Contains(result.Text, "sub") {
		t.Errorf("listing incomplete: %q", result.Text)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 entries, got %d", len(result.Data))
	}
}

func TestConfineRejectsEscape(t *testing.T) {
	root := t.TempDir()
	resolved, err := confine(root, "../outside.txt")
	if err != nil {
		return
	}
	if !strings.HasPrefix(resolved, filepath.Clean(root)) {
		t.Errorf("confine let %q escape to %q", "../outside.txt", resolved)
	}
}
