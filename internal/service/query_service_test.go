package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/entity"
	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/rag/response"
	"agentic-rag-be/pkg/rag/rewrite"
	"agentic-rag-be/pkg/rag/search"
	"agentic-rag-be/pkg/store"
)

func newTestQueryService(index store.VectorIndex, provider llm.LLMProvider, repo *memRepo, documentsDir string) IQueryService {
	logger := discardLogger()
	retriever := search.NewRetriever(index, &fakeEmbedder{}, nil, search.DefaultConfig(), logger)
	return NewQueryService(index, retriever, rewrite.Default(), response.NewParser(logger),
		resolverFor(provider), repo, documentsDir, 3, time.Minute, logger)
}

// geographyIndex holds three passages across two sources; geo.md carries the
// two best ranked ones so source deduplication is observable.
func geographyIndex() *fakeIndex {
	return &fakeIndex{candidates: []store.Candidate{
		candidate("Paris is the capital of France.", "geo.md", 0.10),
		candidate("France borders Germany and Spain.", "geo.md", 0.20),
		candidate("Berlin is the capital of Germany.", "countries.md", 0.30),
	}}
}

func TestQueryAnswersWithDedupedSources(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"answer": "The capital of France is Paris."}`}}
	svc := newTestQueryService(geographyIndex(), provider, newMemRepo(), t.TempDir())

	res, err := svc.Query(context.Background(), &dto.QueryRequest{Question: "What is the capital of France?"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Question != "What is the capital of France?" {
		t.Errorf("question not echoed: %q", res.Question)
	}
	if res.Answer != "The capital of France is Paris." {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("expected 2 deduped sources, got %d: %+v", len(res.Sources), res.Sources)
	}
	if res.Sources[0].Source != "geo.md" {
		t.Errorf("top source = %s, want geo.md", res.Sources[0].Source)
	}
	for _, source := range res.Sources {
		if source.Preview == "" {
			t.Errorf("source %s missing preview", source.Source)
		}
	}
}

func TestQueryPersistsConversationTurns(t *testing.T) {
	ctx := context.Background()
	provider := &scriptedLLM{responses: []string{"Paris."}}
	repo := newMemRepo()
	repo.Append(ctx, "conv-1", entity.Message{Role: "user", Content: "Hi there"})
	repo.Append(ctx, "conv-1", entity.Message{Role: "assistant", Content: "Hello, ask me anything"})
	svc := newTestQueryService(geographyIndex(), provider, repo, t.TempDir())

	_, err := svc.Query(ctx, &dto.QueryRequest{
		Question:       "What is the capital of France?",
		ConversationId: "conv-1",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	messages := repo.messages("conv-1")
	if len(messages) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(messages))
	}
	if messages[2].Role != "user" || messages[2].Content != "What is the capital of France?" {
		t.Errorf("third message = %+v, want the user question", messages[2])
	}
	if messages[3].Role != "assistant" || messages[3].Content != "Paris." {
		t.Errorf("fourth message = %+v, want the assistant answer", messages[3])
	}
	if !strings.Contains(provider.lastPrompt(), "Hello, ask me anything") {
		t.Error("stored history missing from the prompt")
	}
}

func TestQueryStaleConversationRestartsUnderSameId(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"Paris."}}
	repo := newMemRepo()
	svc := newTestQueryService(geographyIndex(), provider, repo, t.TempDir())

	_, err := svc.Query(context.Background(), &dto.QueryRequest{
		Question:       "What is the capital of France?",
		ConversationId: "gone-e3b0c442",
	})
	if err != nil {
		t.Fatalf("stale conversation id must not fail the query: %v", err)
	}
	if got := len(repo.messages("gone-e3b0c442")); got != 2 {
		t.Errorf("conversation not recreated under the stale id: %d messages", got)
	}
}

func TestQueryEmptyRetrievalRefusesWithoutProvider(t *testing.T) {
	provider := &scriptedLLM{}
	svc := newTestQueryService(&fakeIndex{}, provider, newMemRepo(), t.TempDir())

	res, err := svc.Query(context.Background(), &dto.QueryRequest{Question: "Anything at all?"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Answer != response.Refusal {
		t.Errorf("answer = %q, want the refusal", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Errorf("expected no sources, got %+v", res.Sources)
	}
	if provider.promptCount() != 0 {
		t.Errorf("provider called %d times for empty retrieval", provider.promptCount())
	}
}

func TestQueryIndexUnavailablePropagates(t *testing.T) {
	svc := newTestQueryService(&fakeIndex{searchErr: store.ErrIndexUnavailable}, &scriptedLLM{}, newMemRepo(), t.TempDir())

	_, err := svc.Query(context.Background(), &dto.QueryRequest{Question: "Anything?"})
	if !errors.Is(err, store.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want ErrIndexUnavailable", err)
	}
}

func TestQueryRetriesTransientFailureOnce(t *testing.T) {
	provider := &scriptedLLM{
		responses: []string{"Paris."},
		failFirst: 1,
		failErr:   llm.NewError("openai", llm.ErrKindUnreachable, errors.New("connection refused")),
	}
	svc := newTestQueryService(geographyIndex(), provider, newMemRepo(), t.TempDir())

	res, err := svc.Query(context.Background(), &dto.QueryRequest{Question: "What is the capital of France?"})
	if err != nil {
		t.Fatalf("Query failed despite retry: %v", err)
	}
	if res.Answer != "Paris." {
		t.Errorf("answer = %q", res.Answer)
	}
	if provider.promptCount() != 2 {
		t.Errorf("expected 2 provider calls (one retry), got %d", provider.promptCount())
	}
}

func TestQueryProviderFailureKeepsUserTurnOnly(t *testing.T) {
	provider := &scriptedLLM{
		failFirst: 2,
		failErr:   llm.NewError("openai", llm.ErrKindUnreachable, errors.New("connection refused")),
	}
	repo := newMemRepo()
	svc := newTestQueryService(geographyIndex(), provider, repo, t.TempDir())

	_, err := svc.Query(context.Background(), &dto.QueryRequest{
		Question:       "What is the capital of France?",
		ConversationId: "conv-err",
	})
	if err == nil {
		t.Fatal("expected the provider failure to surface")
	}

	messages := repo.messages("conv-err")
	if len(messages) != 1 || messages[0].Role != "user" {
		t.Errorf("stored messages = %+v, want the user turn only", messages)
	}
}

func TestQueryInlineHistoryBeatsStored(t *testing.T) {
	ctx := context.Background()
	provider := &scriptedLLM{responses: []string{"Paris."}}
	repo := newMemRepo()
	repo.Append(ctx, "conv-inline", entity.Message{Role: "user", Content: "stored history line"})
	svc := newTestQueryService(geographyIndex(), provider, repo, t.TempDir())

	_, err := svc.Query(ctx, &dto.QueryRequest{
		Question:       "What is the capital of France?",
		ConversationId: "conv-inline",
		History:        []dto.HistoryMessage{{Role: "user", Content: "inline history line"}},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	prompt := provider.lastPrompt()
	if !strings.Contains(prompt, "inline history line") {
		t.Error("inline history missing from the prompt")
	}
	if strings.Contains(prompt, "stored history line") {
		t.Error("stored history used although inline history was supplied")
	}
}

func TestRagAnswerUsesDefaults(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"Paris."}}
	svc := newTestQueryService(geographyIndex(), provider, newMemRepo(), t.TempDir())

	answer, sources, err := svc.RagAnswer(context.Background(), "What is the capital of France?", nil, "", "")
	if err != nil {
		t.Fatalf("RagAnswer failed: %v", err)
	}
	if answer != "Paris." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 2 {
		t.Errorf("expected 2 sources with the default top-k, got %d", len(sources))
	}
}

func TestStatusReflectsIndex(t *testing.T) {
	empty := newTestQueryService(&fakeIndex{}, &scriptedLLM{}, newMemRepo(), t.TempDir())
	if empty.Status(context.Background()).VectorStoreLoaded {
		t.Error("empty index reported as loaded")
	}

	loaded := newTestQueryService(geographyIndex(), &scriptedLLM{}, newMemRepo(), t.TempDir())
	if !loaded.Status(context.Background()).VectorStoreLoaded {
		t.Error("populated index reported as not loaded")
	}
}

func TestDocumentsReportsIndexedSourcesWithSizes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	index := &fakeIndex{sources: []string{"a.md", "missing.md"}}
	svc := newTestQueryService(index, &scriptedLLM{}, newMemRepo(), dir)

	res, err := svc.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents failed: %v", err)
	}
	if !res.Success || len(res.Documents) != 2 {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.Documents[0].Name != "a.md" || res.Documents[0].Size != 5 {
		t.Errorf("a.md entry = %+v, want size 5", res.Documents[0])
	}
	if res.Documents[1].Name != "missing.md" || res.Documents[1].Size != 0 {
		t.Errorf("missing.md entry = %+v, want size 0", res.Documents[1])
	}
}

func TestMapSourcesKeepsFirstPerSource(t *testing.T) {
	passages := []store.Passage{
		{Text: "first geo passage", Source: "geo.md", Rank: 1},
		{Text: "second geo passage", Source: "geo.md", Rank: 2},
		{Text: "countries passage", Source: "countries.md", Rank: 3},
	}

	sources := mapSources(passages)
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Source != "geo.md" || sources[0].Preview != "first geo passage" {
		t.Errorf("first entry = %+v, want the best ranked geo.md passage", sources[0])
	}
	if sources[1].Source != "countries.md" {
		t.Errorf("second entry = %+v", sources[1])
	}
}

func TestPreviewCollapsesWhitespaceAndTruncatesRunes(t *testing.T) {
	if got := preview("hello\n\t  world"); got != "hello world" {
		t.Errorf("preview = %q, want collapsed whitespace", got)
	}

	long := strings.Repeat("é", sourcePreviewLimit+10)
	want := strings.Repeat("é", sourcePreviewLimit) + "..."
	if got := preview(long); got != want {
		t.Errorf("rune truncation broken: got %d chars", len([]rune(got)))
	}
}
