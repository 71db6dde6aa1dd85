package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentic-rag-be/internal/bootstrap"
	"agentic-rag-be/internal/config"
	"agentic-rag-be/internal/controller"
	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/entity"
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/internal/repository/convstore"
	"agentic-rag-be/internal/repository/vecstore"
	"agentic-rag-be/internal/server"
	"agentic-rag-be/internal/service"
	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/rag/response"
	"agentic-rag-be/pkg/rag/rewrite"
	"agentic-rag-be/pkg/rag/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

// localEmbedder hashes words into a small fixed vector so retrieval works
// without a model server.
type localEmbedder struct{}

func (localEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%8]++
	}
	return vec, nil
}

// scriptedProvider answers every completion with the same grounded payload.
type scriptedProvider struct {
	answer string
}

func (p *scriptedProvider) Complete(context.Context, string, ...llm.Option) (string, error) {
	return fmt.Sprintf(`{"answer": %q}`, p.answer), nil
}

func (p *scriptedProvider) StreamComplete(ctx context.Context, prompt string, options ...llm.Option) (<-chan llm.Chunk, error) {
	text, err := p.Complete(ctx, prompt, options...)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.Chunk, 1)
	ch <- llm.Chunk{Content: text}
	close(ch)
	return ch, nil
}

// newTestContainer wires real services onto temp-dir storage and the local
// fakes above. No database, model server or broker is needed.
func newTestContainer(t *testing.T, cfg *config.Config, provider llm.LLMProvider) *bootstrap.Container {
	t.Helper()

	index, err := vecstore.NewLocalIndex(filepath.Join(t.TempDir(), "vector_db"))
	if err != nil {
		t.Fatalf("open local index: %v", err)
	}
	conversationRepo, err := convstore.NewConversationRepository(t.TempDir())
	if err != nil {
		t.Fatalf("open conversation store: %v", err)
	}

	pipelineLogger := log.New(io.Discard, "", 0)
	embedder := localEmbedder{}
	resolve := func(string, string) (llm.LLMProvider, error) { return provider, nil }

	retriever := search.NewRetriever(index, embedder, nil, search.Config{
		Alpha: cfg.Retrieval.HybridAlpha,
		TopK:  cfg.Retrieval.TopK,
	}, pipelineLogger)

	queryService := service.NewQueryService(
		index,
		retriever,
		rewrite.Default(),
		response.NewParser(pipelineLogger),
		resolve,
		conversationRepo,
		cfg.Ingest.DocumentsDir,
		cfg.Retrieval.TopK,
		cfg.Timeouts.Request,
		pipelineLogger,
	)
	agentService := service.NewAgentService(
		resolve,
		queryService,
		conversationRepo,
		retriever,
		cfg.Retrieval.TopK,
		cfg.Ingest.SearchGatewayURL,
		cfg.Ingest.DocumentsDir,
		cfg.Agent.MaxIterations,
		cfg.Timeouts.Request,
		pipelineLogger,
	)
	conversationService := service.NewConversationService(conversationRepo, nil)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })
	ingestionService := service.NewIngestionService(
		pubSub,
		"index.build.integration",
		index,
		embedder,
		nil,
		cfg.Ingest.DocumentsDir,
		cfg.Ingest.ChunkSize,
		cfg.Ingest.ChunkOverlap,
		pipelineLogger,
	)
	if err := ingestionService.Start(context.Background()); err != nil {
		t.Fatalf("start ingestion worker: %v", err)
	}

	return &bootstrap.Container{
		RagController:          controller.NewRagController(queryService, ingestionService, cfg.Timeouts.StreamIdle),
		AgentController:        controller.NewAgentController(agentService, conversationService, cfg.Timeouts.StreamIdle),
		ConversationController: controller.NewConversationController(conversationService),
		IngestionService:       ingestionService,
	}
}

func TestApiFlows(t *testing.T) {
	// Load .env from root (2 levels up) because tests run in package dir
	if err := godotenv.Load("../../.env"); err != nil {
		t.Logf("Warning: Could not load ../../.env: %v", err)
	}
	cfg := config.Load()

	// The flows below must pass without external services.
	cfg.Ingest.DocumentsDir = t.TempDir()
	cfg.Ingest.ChunkSize = 200
	cfg.Ingest.ChunkOverlap = 50
	cfg.Retrieval.TopK = 3
	cfg.Agent.MaxIterations = 5
	cfg.Timeouts.Request = time.Minute
	cfg.Timeouts.StreamIdle = 5 * time.Second

	provider := &scriptedProvider{answer: "Paris is the capital of France."}
	container := newTestContainer(t, cfg, provider)
	srv := server.New(cfg, container)
	app := srv.GetApp()

	t.Run("status reports missing index", func(t *testing.T) {
		resp := get(t, app, "/api/status")
		assert.Equal(t, 200, resp.StatusCode)

		var status dto.StatusResponse
		json.NewDecoder(resp.Body).Decode(&status)
		assert.False(t, status.VectorStoreLoaded)
	})

	t.Run("query refused before build", func(t *testing.T) {
		resp := postJSON(t, app, "/api/query", dto.QueryRequest{Question: "Capital of France?"})
		assert.Equal(t, 409, resp.StatusCode)

		var result serverutils.BaseResponse[any]
		json.NewDecoder(resp.Body).Decode(&result)
		assert.False(t, result.Success)
	})

	t.Run("query-stream refused before build", func(t *testing.T) {
		resp := postJSON(t, app, "/api/query-stream", dto.QueryRequest{Question: "Capital of France?"})
		assert.Equal(t, 409, resp.StatusCode)
	})

	t.Run("upload and build", func(t *testing.T) {
		resp := uploadFile(t, app, "geography.md",
			"Paris is the capital of France. France borders Germany, Spain and Italy. "+
				"Berlin is the capital of Germany. Germany borders nine countries.")
		assert.Equal(t, 200, resp.StatusCode)

		var uploaded dto.UploadResponse
		json.NewDecoder(resp.Body).Decode(&uploaded)
		assert.True(t, uploaded.Success)
		assert.Equal(t, "geography.md", uploaded.Filename)

		resp = postJSON(t, app, "/api/build-start", map[string]interface{}{})
		assert.Equal(t, 200, resp.StatusCode)

		var started dto.BuildStartResponse
		json.NewDecoder(resp.Body).Decode(&started)
		assert.True(t, started.Success)

		waitForBuild(t, app)
	})

	t.Run("status and documents after build", func(t *testing.T) {
		resp := get(t, app, "/api/status")
		var status dto.StatusResponse
		json.NewDecoder(resp.Body).Decode(&status)
		assert.True(t, status.VectorStoreLoaded)

		resp = get(t, app, "/api/documents")
		assert.Equal(t, 200, resp.StatusCode)

		var documents dto.DocumentsResponse
		json.NewDecoder(resp.Body).Decode(&documents)
		assert.True(t, documents.Success)
		if assert.Len(t, documents.Documents, 1) {
			assert.Equal(t, "geography.md", documents.Documents[0].Name)
			assert.Greater(t, documents.Documents[0].Size, int64(0))
		}
	})

	t.Run("query answers with sources", func(t *testing.T) {
		resp := postJSON(t, app, "/api/query", dto.QueryRequest{Question: "What is the capital of France?"})
		assert.Equal(t, 200, resp.StatusCode)

		var result dto.QueryResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "Paris is the capital of France.", result.Answer)
		if assert.NotEmpty(t, result.Sources) {
			assert.Equal(t, "geography.md", result.Sources[0].Source)
			assert.NotEmpty(t, result.Sources[0].Preview)
		}
	})

	t.Run("query-stream emits ordered events", func(t *testing.T) {
		resp := postJSON(t, app, "/api/query-stream", dto.QueryRequest{Question: "What is the capital of France?"})
		assert.Equal(t, 200, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

		events := decodeEvents(t, resp)
		if !assert.GreaterOrEqual(t, len(events), 4) {
			return
		}

		// No conversation was supplied, so the service allocates one and
		// announces it before anything else.
		assert.Equal(t, "conversation_id", events[0].Type)
		conversationId, _ := events[0].Data.(string)
		assert.NotEmpty(t, conversationId)

		assert.Equal(t, "sources", events[1].Type)
		assert.Equal(t, "done", events[len(events)-1].Type)

		var answer strings.Builder
		for _, event := range events[2 : len(events)-1] {
			assert.Equal(t, "content", event.Type)
			token, _ := event.Data.(string)
			answer.WriteString(token)
		}
		assert.Equal(t, "Paris is the capital of France.", answer.String())

		// The allocated conversation recorded both turns.
		resp = get(t, app, "/api/conversations/"+conversationId)
		assert.Equal(t, 200, resp.StatusCode)

		var history dto.ConversationHistoryResponse
		json.NewDecoder(resp.Body).Decode(&history)
		assert.Equal(t, 2, history.Total)
	})

	t.Run("conversation lifecycle", func(t *testing.T) {
		resp := postJSON(t, app, "/api/agent/conversation/create", map[string]interface{}{})
		assert.Equal(t, 200, resp.StatusCode)

		var created dto.ConversationCreateResponse
		json.NewDecoder(resp.Body).Decode(&created)
		assert.NotEmpty(t, created.ConversationId)

		resp = postJSON(t, app, "/api/query", dto.QueryRequest{
			Question:       "What is the capital of France?",
			ConversationId: created.ConversationId,
		})
		assert.Equal(t, 200, resp.StatusCode)

		resp = get(t, app, "/api/conversations")
		var list dto.ConversationListResponse
		json.NewDecoder(resp.Body).Decode(&list)
		assert.True(t, list.Success)

		var summary *dto.ConversationSummary
		for i := range list.Conversations {
			if list.Conversations[i].Id == created.ConversationId {
				summary = &list.Conversations[i]
			}
		}
		if assert.NotNil(t, summary) {
			assert.Equal(t, 2, summary.MessageCount)
			assert.Equal(t, "What is the capital of France?", summary.Title)
		}

		resp = get(t, app, "/api/conversations/"+created.ConversationId)
		var history dto.ConversationHistoryResponse
		json.NewDecoder(resp.Body).Decode(&history)
		assert.Equal(t, 2, history.Total)
		assert.Equal(t, "user", history.Messages[0].Role)
		assert.Equal(t, "assistant", history.Messages[1].Role)

		req := httptest.NewRequest("DELETE", "/api/conversations/"+created.ConversationId, nil)
		deleteResp, _ := app.Test(req, -1)
		assert.Equal(t, 200, deleteResp.StatusCode)

		resp = get(t, app, "/api/conversations/"+created.ConversationId)
		assert.Equal(t, 404, resp.StatusCode)
	})

	t.Run("smart-query routes plain question to retrieval", func(t *testing.T) {
		resp := postJSON(t, app, "/api/agent/smart-query", dto.SmartQueryRequest{
			Question: "What is the capital of France?",
		})
		assert.Equal(t, 200, resp.StatusCode)

		var result dto.SmartQueryResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.True(t, result.Success)
		assert.Equal(t, "rag", result.ModeUsed)
		assert.Equal(t, "Paris is the capital of France.", result.Answer)
		assert.NotEmpty(t, result.Sources)
	})

	t.Run("agent tools catalogue", func(t *testing.T) {
		resp := get(t, app, "/api/agent/tools")
		assert.Equal(t, 200, resp.StatusCode)

		var result dto.ToolsResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.Tools)
		assert.Equal(t, "knowledge_retrieve", result.Tools[0].Name)
	})
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func uploadFile(t *testing.T, app *fiber.App, filename, content string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(content))
	writer.Close()

	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return resp
}

// waitForBuild polls build progress until the worker reports completion.
func waitForBuild(t *testing.T, app *fiber.App) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp := get(t, app, "/api/build-progress")

		var progress entity.BuildProgress
		json.NewDecoder(resp.Body).Decode(&progress)
		switch progress.Status {
		case entity.BuildStatusCompleted:
			return
		case entity.BuildStatusError:
			t.Fatalf("build failed: %s", progress.Message)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("build did not complete in time")
}

func decodeEvents(t *testing.T, resp *http.Response) []serverutils.StreamEvent {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream body: %v", err)
	}

	var events []serverutils.StreamEvent
	for _, frame := range strings.Split(string(raw), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("frame without data prefix: %q", frame)
		}
		var event serverutils.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("unmarshal event %q: %v", payload, err)
		}
		events = append(events, event)
	}
	return events
}
