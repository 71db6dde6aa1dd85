package service

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/internal/repository/contract"
	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/rag/prompt"
	"agentic-rag-be/pkg/rag/response"
	"agentic-rag-be/pkg/rag/rewrite"
	"agentic-rag-be/pkg/rag/search"
	"agentic-rag-be/pkg/store"
)

// LLMResolver returns the chat provider registered under the given name; an
// empty name selects the configured default, an empty model the provider's
// default model.
type LLMResolver func(providerType, model string) (llm.LLMProvider, error)

// sourcePreviewLimit caps the preview text carried per source entry.
const sourcePreviewLimit = 300

// Stream event types emitted by the retrieval path. The agent path reuses
// the trace event types from pkg/agent.
const (
	streamEventConversationId = "conversation_id"
	streamEventSources        = "sources"
	streamEventContent        = "content"
	streamEventDone           = "done"
	streamEventError          = "error"
)

type IQueryService interface {
	Status(ctx context.Context) *dto.StatusResponse
	Ready(ctx context.Context) bool
	Documents(ctx context.Context) (*dto.DocumentsResponse, error)
	Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error)
	QueryStream(ctx context.Context, req *dto.QueryRequest, stream *serverutils.EventStream)

	// RagAnswer runs the plain retrieval path with default parameters and no
	// conversation handling; the smart-query router uses it for questions
	// that do not need the reasoning loop.
	RagAnswer(ctx context.Context, question string, history []llm.Message, providerName, model string) (string, []dto.SourceInfo, error)
}

type queryService struct {
	index            store.VectorIndex
	retriever        *search.Retriever
	rewriter         *rewrite.Rewriter
	parser           *response.Parser
	resolveLLM       LLMResolver
	conversationRepo contract.ConversationRepository
	documentsDir     string
	defaultTopK      int
	requestTimeout   time.Duration
	logger           *log.Logger
}

func NewQueryService(
	index store.VectorIndex,
	retriever *search.Retriever,
	rewriter *rewrite.Rewriter,
	parser *response.Parser,
	resolveLLM LLMResolver,
	conversationRepo contract.ConversationRepository,
	documentsDir string,
	defaultTopK int,
	requestTimeout time.Duration,
	logger *log.Logger,
) IQueryService {
	return &queryService{
		index:            index,
		retriever:        retriever,
		rewriter:         rewriter,
		parser:           parser,
		resolveLLM:       resolveLLM,
		conversationRepo: conversationRepo,
		documentsDir:     documentsDir,
		defaultTopK:      defaultTopK,
		requestTimeout:   requestTimeout,
		logger:           logger,
	}
}

func (s *queryService) Status(ctx context.Context) *dto.StatusResponse {
	return &dto.StatusResponse{VectorStoreLoaded: s.index.Ready(ctx)}
}

func (s *queryService) Ready(ctx context.Context) bool {
	return s.index.Ready(ctx)
}

// Documents lists the distinct sources currently indexed. Sizes come from
// the documents directory and are zero for sources whose file is gone.
func (s *queryService) Documents(ctx context.Context) (*dto.DocumentsResponse, error) {
	sources, err := s.index.Sources(ctx)
	if err != nil {
		return nil, err
	}

	documents := make([]dto.DocumentInfo, 0, len(sources))
	for _, source := range sources {
		info := dto.DocumentInfo{Name: source}
		if stat, err := os.Stat(filepath.Join(s.documentsDir, source)); err == nil {
			info.Size = stat.Size()
		}
		documents = append(documents, info)
	}

	return &dto.DocumentsResponse{
		Success:   true,
		Documents: documents,
	}, nil
}

func (s *queryService) Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	provider, err := s.resolveLLM(req.Provider, req.Model)
	if err != nil {
		return nil, err
	}

	history := s.history(ctx, req.History, req.ConversationId)
	appendConversationTurn(ctx, s.conversationRepo, s.logger, req.ConversationId, "user", req.Question)

	passages, err := s.searchPassages(ctx, req.Question, req.TopK, search.Method(req.Method))
	if err != nil {
		return nil, err
	}

	answer, err := s.generate(ctx, provider, req.Question, passages, history)
	if err != nil {
		return nil, err
	}

	appendConversationTurn(ctx, s.conversationRepo, s.logger, req.ConversationId, "assistant", answer)

	return &dto.QueryResponse{
		Question: req.Question,
		Answer:   answer,
		Sources:  mapSources(passages),
	}, nil
}

// QueryStream is the producer behind POST /query-stream. It runs on the
// response writer goroutine; ctx is cancelled when the client disconnects or
// the stream idles out, in which case it stops without a terminal event.
func (s *queryService) QueryStream(ctx context.Context, req *dto.QueryRequest, stream *serverutils.EventStream) {
	send := func(event serverutils.StreamEvent) bool {
		return stream.Send(event) == nil
	}
	fail := func(message string) {
		_ = stream.Send(serverutils.StreamEvent{Type: streamEventError, Data: message})
	}

	provider, err := s.resolveLLM(req.Provider, req.Model)
	if err != nil {
		fail(err.Error())
		return
	}

	history := s.history(ctx, req.History, req.ConversationId)

	conversationId := req.ConversationId
	if conversationId == "" {
		conversation, err := s.conversationRepo.Create(ctx)
		if err != nil {
			fail("failed to create conversation")
			return
		}
		conversationId = conversation.Id
		if !send(serverutils.StreamEvent{Type: streamEventConversationId, Data: conversationId}) {
			return
		}
	}

	appendConversationTurn(ctx, s.conversationRepo, s.logger, conversationId, "user", req.Question)

	passages, err := s.searchPassages(ctx, req.Question, req.TopK, search.Method(req.Method))
	if err != nil {
		if ctx.Err() == nil {
			fail(err.Error())
		}
		return
	}

	sources := mapSources(passages)
	if !send(serverutils.StreamEvent{
		Type: streamEventSources,
		Data: sources,
		Meta: map[string]interface{}{"returned": len(passages)},
	}) {
		return
	}

	answer, err := s.generate(ctx, provider, req.Question, passages, history)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Printf("stream generation failed: %v", err)
			fail(err.Error())
		}
		return
	}

	for _, r := range answer {
		if !send(serverutils.StreamEvent{Type: streamEventContent, Data: string(r)}) {
			return
		}
	}

	appendConversationTurn(ctx, s.conversationRepo, s.logger, conversationId, "assistant", answer)
	send(serverutils.StreamEvent{Type: streamEventDone})
}

func (s *queryService) RagAnswer(ctx context.Context, question string, history []llm.Message, providerName, model string) (string, []dto.SourceInfo, error) {
	provider, err := s.resolveLLM(providerName, model)
	if err != nil {
		return "", nil, err
	}

	passages, err := s.searchPassages(ctx, question, 0, "")
	if err != nil {
		return "", nil, err
	}

	answer, err := s.generate(ctx, provider, question, passages, history)
	if err != nil {
		return "", nil, err
	}
	return answer, mapSources(passages), nil
}

// searchPassages rewrites the query and runs retrieval. Zero topK and empty
// method select the configured defaults.
func (s *queryService) searchPassages(ctx context.Context, question string, topK int, method search.Method) ([]store.Passage, error) {
	rewritten := s.rewriter.Rewrite(question)
	if rewritten != question {
		s.logger.Printf("query rewritten: %q -> %q", question, rewritten)
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	return s.retriever.Search(ctx, rewritten, topK, method)
}

// generate grounds the question in the retrieved passages and parses the
// completion. Empty retrieval short-circuits to the refusal answer without
// touching the provider.
func (s *queryService) generate(ctx context.Context, provider llm.LLMProvider, question string, passages []store.Passage, history []llm.Message) (string, error) {
	if len(passages) == 0 {
		return response.Refusal, nil
	}

	promptText := prompt.NewContextBuilder(question, passages, history).Build()

	raw, err := provider.Complete(ctx, promptText)
	if err != nil && llm.IsTransient(err) && ctx.Err() == nil {
		s.logger.Printf("completion failed (%v), retrying once", err)
		raw, err = provider.Complete(ctx, promptText)
	}
	if err != nil {
		return "", err
	}
	return s.parser.Parse(raw), nil
}

// history prefers turns supplied inline by the client over the stored
// conversation.
func (s *queryService) history(ctx context.Context, inline []dto.HistoryMessage, conversationId string) []llm.Message {
	if len(inline) > 0 {
		messages := make([]llm.Message, 0, len(inline))
		for _, m := range inline {
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
		return messages
	}
	return toLLMMessages(conversationMessages(ctx, s.conversationRepo, s.logger, conversationId))
}

// mapSources deduplicates passages by source, keeping the best ranked one,
// and trims previews for transport.
func mapSources(passages []store.Passage) []dto.SourceInfo {
	seen := make(map[string]bool, len(passages))
	sources := make([]dto.SourceInfo, 0, len(passages))
	for _, passage := range passages {
		if seen[passage.Source] {
			continue
		}
		seen[passage.Source] = true
		sources = append(sources, dto.SourceInfo{
			Source:  passage.Source,
			Preview: preview(passage.Text),
		})
	}
	return sources
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= sourcePreviewLimit {
		return text
	}
	return string(runes[:sourcePreviewLimit]) + "..."
}
