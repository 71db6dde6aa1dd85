package service

import (
	"context"
	"log"
	"strings"
	"time"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/internal/repository/contract"
	"agentic-rag-be/pkg/agent"
	"agentic-rag-be/pkg/agent/tools"
)

// maxAgentHistory bounds how many stored turns are replayed into the agent
// prompt.
const maxAgentHistory = 6

// observationResponseLimit caps observation text in response traces; the
// full text stays in the conversation the model saw.
const observationResponseLimit = 500

type IAgentService interface {
	Query(ctx context.Context, req *dto.AgentQueryRequest) (*dto.AgentQueryResponse, error)
	SmartQuery(ctx context.Context, req *dto.SmartQueryRequest) (*dto.SmartQueryResponse, error)
	QueryStream(ctx context.Context, req *dto.AgentQueryRequest, stream *serverutils.EventStream)
	Tools(ctx context.Context) (*dto.ToolsResponse, error)
}

type agentService struct {
	resolveLLM       LLMResolver
	queryService     IQueryService
	conversationRepo contract.ConversationRepository
	retriever        tools.Retriever
	topK             int
	gatewayURL       string
	fileRoot         string
	maxIterations    int
	requestTimeout   time.Duration
	logger           *log.Logger
}

func NewAgentService(
	resolveLLM LLMResolver,
	queryService IQueryService,
	conversationRepo contract.ConversationRepository,
	retriever tools.Retriever,
	topK int,
	gatewayURL string,
	fileRoot string,
	maxIterations int,
	requestTimeout time.Duration,
	logger *log.Logger,
) IAgentService {
	return &agentService{
		resolveLLM:       resolveLLM,
		queryService:     queryService,
		conversationRepo: conversationRepo,
		retriever:        retriever,
		topK:             topK,
		gatewayURL:       gatewayURL,
		fileRoot:         fileRoot,
		maxIterations:    maxIterations,
		requestTimeout:   requestTimeout,
		logger:           logger,
	}
}

func (s *agentService) Query(ctx context.Context, req *dto.AgentQueryRequest) (*dto.AgentQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	mode := agentMode(req.AgentType)
	ag, err := s.buildAgent(req.Provider, req.Model, mode, s.overrides(req))
	if err != nil {
		return nil, err
	}

	result, err := s.runAgent(ctx, ag, req.Question, req.ConversationId)
	if err != nil {
		return nil, err
	}
	return toAgentResponse(result), nil
}

// SmartQuery routes the question: plain retrieval when the classifier sees
// nothing agent-worthy, the full reasoning loop otherwise.
func (s *agentService) SmartQuery(ctx context.Context, req *dto.SmartQueryRequest) (*dto.SmartQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	if !agent.NeedsAgent(req.Question) {
		history := toLLMMessages(conversationMessages(ctx, s.conversationRepo, s.logger, req.ConversationId))
		appendConversationTurn(ctx, s.conversationRepo, s.logger, req.ConversationId, "user", req.Question)

		answer, sources, err := s.queryService.RagAnswer(ctx, req.Question, history, req.Provider, "")
		if err != nil {
			return nil, err
		}
		appendConversationTurn(ctx, s.conversationRepo, s.logger, req.ConversationId, "assistant", answer)

		return &dto.SmartQueryResponse{
			Success:    true,
			Answer:     answer,
			ModeUsed:   agent.ModeRAG,
			Sources:    sources,
			ToolsUsed:  []string{"knowledge_retrieve"},
			Iterations: 1,
		}, nil
	}

	mode := agentMode(req.AgentType)
	ag, err := s.buildAgent(req.Provider, "", mode, nil)
	if err != nil {
		return nil, err
	}

	result, err := s.runAgent(ctx, ag, req.Question, req.ConversationId)
	if err != nil {
		return nil, err
	}

	return &dto.SmartQueryResponse{
		Success:         result.Success,
		Answer:          result.Answer,
		ModeUsed:        mode,
		ThoughtProcess:  toThoughtSteps(result.ThoughtProcess),
		ToolsUsed:       result.ToolsUsed,
		Iterations:      result.Iterations,
		FinalReflection: result.FinalReflection,
	}, nil
}

// QueryStream is the producer behind POST /agent/query-stream. Trace events
// pass through one-to-one; the loop emits its own terminal error event, so
// only failures before the run produce one here.
func (s *agentService) QueryStream(ctx context.Context, req *dto.AgentQueryRequest, stream *serverutils.EventStream) {
	fail := func(message string) {
		_ = stream.Send(serverutils.StreamEvent{Type: streamEventError, Data: message})
	}

	mode := agentMode(req.AgentType)
	ag, err := s.buildAgent(req.Provider, req.Model, mode, s.overrides(req))
	if err != nil {
		fail(err.Error())
		return
	}

	conversationId := req.ConversationId
	if conversationId == "" {
		conversation, err := s.conversationRepo.Create(ctx)
		if err != nil {
			fail("failed to create conversation")
			return
		}
		conversationId = conversation.Id
		if stream.Send(serverutils.StreamEvent{Type: streamEventConversationId, Data: conversationId}) != nil {
			return
		}
	}

	history := s.condensedHistory(ctx, conversationId)
	appendConversationTurn(ctx, s.conversationRepo, s.logger, conversationId, "user", req.Question)

	sink := func(event agent.Event) error {
		return stream.Send(serverutils.StreamEvent{
			Type: event.Type,
			Data: event.Data,
			Step: event.Step,
			Meta: event.Meta,
		})
	}

	result, err := ag.RunStream(ctx, req.Question, history, sink)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Printf("agent stream run failed: %v", err)
		}
		return
	}

	if result.Success {
		appendConversationTurn(ctx, s.conversationRepo, s.logger, conversationId, "assistant", result.Answer)
	}
}

func (s *agentService) Tools(ctx context.Context) (*dto.ToolsResponse, error) {
	builder, err := s.builderFor("", "")
	if err != nil {
		return nil, err
	}

	toolset := builder.Toolset()
	infos := make([]dto.ToolInfo, 0, len(toolset))
	for _, t := range toolset {
		infos = append(infos, dto.ToolInfo{Name: t.Name(), Description: t.Description()})
	}
	return &dto.ToolsResponse{Success: true, Tools: infos}, nil
}

func (s *agentService) builderFor(providerName, model string) (*agent.Builder, error) {
	provider, err := s.resolveLLM(providerName, model)
	if err != nil {
		return nil, err
	}
	return agent.NewBuilder(provider, s.retriever, s.topK, s.gatewayURL, s.fileRoot, s.logger), nil
}

func (s *agentService) buildAgent(providerName, model, mode string, opts []func(*agent.Config)) (*agent.Agent, error) {
	builder, err := s.builderFor(providerName, model)
	if err != nil {
		return nil, err
	}
	return builder.Build(mode, opts...)
}

// runAgent wraps one non-streaming run with conversation handling: the user
// turn lands before the run, the assistant turn only after a successful one.
func (s *agentService) runAgent(ctx context.Context, ag *agent.Agent, question, conversationId string) (*agent.Response, error) {
	history := s.condensedHistory(ctx, conversationId)
	appendConversationTurn(ctx, s.conversationRepo, s.logger, conversationId, "user", question)

	result, err := ag.Run(ctx, question, history)
	if err != nil {
		return nil, err
	}

	if result.Success {
		appendConversationTurn(ctx, s.conversationRepo, s.logger, conversationId, "assistant", result.Answer)
	}
	return result, nil
}

// overrides maps per-request knobs onto the mode's loop configuration. The
// configured default budget applies to full mode only; preset modes keep
// their own budgets unless the request overrides them.
func (s *agentService) overrides(req *dto.AgentQueryRequest) []func(*agent.Config) {
	var opts []func(*agent.Config)
	if req.AgentType == "" || req.AgentType == agent.ModeFull {
		if n := s.maxIterations; n > 0 {
			opts = append(opts, func(c *agent.Config) { c.MaxIterations = n })
		}
	}
	if req.MaxIterations > 0 {
		n := req.MaxIterations
		opts = append(opts, func(c *agent.Config) { c.MaxIterations = n })
	}
	if req.EnableReflection != nil {
		v := *req.EnableReflection
		opts = append(opts, func(c *agent.Config) { c.EnableReflection = v })
	}
	if req.EnablePlanning != nil {
		v := *req.EnablePlanning
		opts = append(opts, func(c *agent.Config) { c.EnablePlanning = v })
	}
	return opts
}

// condensedHistory renders the stored tail of a conversation as plain
// dialogue lines for the agent prompt.
func (s *agentService) condensedHistory(ctx context.Context, conversationId string) string {
	messages := conversationMessages(ctx, s.conversationRepo, s.logger, conversationId)
	if len(messages) > maxAgentHistory {
		messages = messages[len(messages)-maxAgentHistory:]
	}
	if len(messages) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, m := range messages {
		role := "User"
		if m.Role == "assistant" {
			role = "Assistant"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func agentMode(requested string) string {
	if requested == "" {
		return agent.ModeFull
	}
	return requested
}

func toAgentResponse(result *agent.Response) *dto.AgentQueryResponse {
	return &dto.AgentQueryResponse{
		Success:         result.Success,
		Answer:          result.Answer,
		ThoughtProcess:  toThoughtSteps(result.ThoughtProcess),
		ToolsUsed:       result.ToolsUsed,
		Iterations:      result.Iterations,
		FinalReflection: result.FinalReflection,
	}
}

func toThoughtSteps(steps []agent.Step) []dto.ThoughtStep {
	out := make([]dto.ThoughtStep, 0, len(steps))
	for _, step := range steps {
		out = append(out, dto.ThoughtStep{
			Step:        step.Step,
			Thought:     step.Thought,
			Action:      step.Tool,
			ActionInput: step.ToolInput,
			Observation: truncateRunes(step.Observation, observationResponseLimit),
		})
	}
	return out
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
