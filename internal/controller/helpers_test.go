package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/entity"
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
)

// newTestApp builds a fiber app with the error handler installed and the
// given routes registered under /api, mirroring the real server wiring.
func newTestApp(register func(api fiber.Router)) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	register(api)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s failed: %v", path, err)
	}
	return resp
}

func doRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s failed: %v", path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}

// decodeEvents parses a buffered SSE body back into the events it carried.
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

func eventTypes(events []serverutils.StreamEvent) []string {
	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	return types
}

// multipartFile builds a multipart body with one "file" field.
func multipartFile(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// stubQueryService scripts the retrieval side of the API.
type stubQueryService struct {
	status       *dto.StatusResponse
	ready        bool
	documents    *dto.DocumentsResponse
	documentsErr error
	queryRes     *dto.QueryResponse
	queryErr     error
	events       []serverutils.StreamEvent

	gotQuery  *dto.QueryRequest
	gotStream *dto.QueryRequest
}

func (s *stubQueryService) Status(context.Context) *dto.StatusResponse {
	if s.status != nil {
		return s.status
	}
	return &dto.StatusResponse{VectorStoreLoaded: s.ready}
}

func (s *stubQueryService) Ready(context.Context) bool { return s.ready }

func (s *stubQueryService) Documents(context.Context) (*dto.DocumentsResponse, error) {
	return s.documents, s.documentsErr
}

func (s *stubQueryService) Query(_ context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	s.gotQuery = req
	return s.queryRes, s.queryErr
}

func (s *stubQueryService) QueryStream(_ context.Context, req *dto.QueryRequest, stream *serverutils.EventStream) {
	s.gotStream = req
	for _, event := range s.events {
		if err := stream.Send(event); err != nil {
			return
		}
	}
}

func (s *stubQueryService) RagAnswer(context.Context, string, []llm.Message, string, string) (string, []dto.SourceInfo, error) {
	return "", nil, nil
}

// stubIngestionService scripts uploads and builds.
type stubIngestionService struct {
	buildRes  *dto.BuildStartResponse
	buildErr  error
	progress  entity.BuildProgress
	uploadRes *dto.UploadResponse
	uploadErr error

	gotUpload *multipart.FileHeader
}

func (s *stubIngestionService) Start(context.Context) error { return nil }

func (s *stubIngestionService) RequestBuild(context.Context) (*dto.BuildStartResponse, error) {
	return s.buildRes, s.buildErr
}

func (s *stubIngestionService) Progress(context.Context) entity.BuildProgress { return s.progress }

func (s *stubIngestionService) SaveDocument(_ context.Context, file *multipart.FileHeader) (*dto.UploadResponse, error) {
	s.gotUpload = file
	return s.uploadRes, s.uploadErr
}

// stubAgentService scripts the reasoning side of the API.
type stubAgentService struct {
	queryRes *dto.AgentQueryResponse
	queryErr error
	smartRes *dto.SmartQueryResponse
	smartErr error
	tools    *dto.ToolsResponse
	events   []serverutils.StreamEvent

	gotQuery  *dto.AgentQueryRequest
	gotSmart  *dto.SmartQueryRequest
	gotStream *dto.AgentQueryRequest
}

func (s *stubAgentService) Query(_ context.Context, req *dto.AgentQueryRequest) (*dto.AgentQueryResponse, error) {
	s.gotQuery = req
	return s.queryRes, s.queryErr
}

func (s *stubAgentService) SmartQuery(_ context.Context, req *dto.SmartQueryRequest) (*dto.SmartQueryResponse, error) {
	s.gotSmart = req
	return s.smartRes, s.smartErr
}

func (s *stubAgentService) QueryStream(_ context.Context, req *dto.AgentQueryRequest, stream *serverutils.EventStream) {
	s.gotStream = req
	for _, event := range s.events {
		if err := stream.Send(event); err != nil {
			return
		}
	}
}

func (s *stubAgentService) Tools(context.Context) (*dto.ToolsResponse, error) {
	return s.tools, nil
}

// stubConversationService scripts conversation CRUD.
type stubConversationService struct {
	createRes  *dto.ConversationCreateResponse
	listRes    *dto.ConversationListResponse
	historyRes *dto.ConversationHistoryResponse
	historyErr error
	deleteErr  error

	gotHistoryId string
	gotDeleteId  string
}

func (s *stubConversationService) Create(context.Context) (*dto.ConversationCreateResponse, error) {
	return s.createRes, nil
}

func (s *stubConversationService) List(context.Context) (*dto.ConversationListResponse, error) {
	return s.listRes, nil
}

func (s *stubConversationService) History(_ context.Context, id string) (*dto.ConversationHistoryResponse, error) {
	s.gotHistoryId = id
	return s.historyRes, s.historyErr
}

func (s *stubConversationService) Delete(_ context.Context, id string) error {
	s.gotDeleteId = id
	return s.deleteErr
}
