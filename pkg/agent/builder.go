package agent

import (
	"fmt"
	"log"

	"agentic-rag-be/pkg/agent/tools"
	"agentic-rag-be/pkg/llm"
)

// Agent modes selectable per request. ModeRAG and ModeSmart are routed by
// the session layer; the rest map to loop configurations here.
const (
	ModeRAG      = "rag"
	ModeSmart    = "smart"
	ModeFull     = "full"
	ModeResearch = "research"
	ModeManager  = "manager"
	ModeSimple   = "simple"
)

// Builder assembles agents with mode-specific budgets and toolsets.
type Builder struct {
	provider   llm.LLMProvider
	retriever  tools.Retriever
	topK       int
	gatewayURL string
	fileRoot   string
	logger     *log.Logger
}

// NewBuilder creates a builder sharing one provider and retrieval layer
// across all agents it produces.
func NewBuilder(
	provider llm.LLMProvider,
	retriever tools.Retriever,
	topK int,
	gatewayURL string,
	fileRoot string,
	logger *log.Logger,
) *Builder {
	return &Builder{
		provider:   provider,
		retriever:  retriever,
		topK:       topK,
		gatewayURL: gatewayURL,
		fileRoot:   fileRoot,
		logger:     logger,
	}
}

// Build creates an agent for the given mode. Option functions mutate the
// mode's default config, letting callers override the iteration budget or
// toggle reflection per request.
func (b *Builder) Build(mode string, opts ...func(*Config)) (*Agent, error) {
	var (
		config    Config
		webSearch bool
		webFirst  bool
		fileTools bool
	)

	switch mode {
	case ModeFull:
		config = DefaultConfig()
		webSearch = true
		fileTools = true
	case ModeResearch:
		config = DefaultConfig()
		config.MaxIterations = 15
		config.Preamble = "Prefer the web_search tool for time-sensitive questions and external entities; fall back to knowledge_retrieve for local material."
		webSearch = true
		webFirst = true
	case ModeManager:
		config = DefaultConfig()
		config.Preamble = "Prefer the file_read and file_list tools when the question concerns workspace files."
		fileTools = true
	case ModeSimple:
		config = Config{
			MaxIterations: 5,
			Temperature:   DefaultConfig().Temperature,
		}
	default:
		return nil, fmt.Errorf("unknown agent mode %q", mode)
	}

	for _, opt := range opts {
		opt(&config)
	}

	registry := tools.NewRegistry()
	knowledge := tools.NewKnowledgeRetrieve(b.retriever, b.topK)
	if webFirst {
		registry.Register(tools.NewWebSearch(b.gatewayURL))
		registry.Register(knowledge)
	} else {
		registry.Register(knowledge)
		if webSearch {
			registry.Register(tools.NewWebSearch(b.gatewayURL))
		}
	}
	if fileTools {
		registry.Register(tools.NewFileRead(b.fileRoot))
		registry.Register(tools.NewFileList(b.fileRoot))
	}

	return New(b.provider, registry, config, b.logger), nil
}

// Toolset lists every tool the builder can wire, in the full-mode layout.
// Discovery endpoints use it to describe capabilities without running an
// agent.
func (b *Builder) Toolset() []tools.Tool {
	registry := tools.NewRegistry()
	registry.Register(tools.NewKnowledgeRetrieve(b.retriever, b.topK))
	registry.Register(tools.NewWebSearch(b.gatewayURL))
	registry.Register(tools.NewFileRead(b.fileRoot))
	registry.Register(tools.NewFileList(b.fileRoot))
	return registry.List()
}
