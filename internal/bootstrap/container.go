package bootstrap

import (
	"context"
	"log"

	"agentic-rag-be/internal/config"
	"agentic-rag-be/internal/controller"
	"agentic-rag-be/internal/pkg/logger"
	"agentic-rag-be/internal/repository/convstore"
	"agentic-rag-be/internal/repository/vecstore"
	"agentic-rag-be/internal/service"
	"agentic-rag-be/pkg/cache"
	"agentic-rag-be/pkg/database"
	"agentic-rag-be/pkg/embedding"
	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/llm/factory"
	"agentic-rag-be/pkg/rag/response"
	"agentic-rag-be/pkg/rag/rewrite"
	"agentic-rag-be/pkg/rag/search"
	"agentic-rag-be/pkg/store"

	pktNats "agentic-rag-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// buildTopic is the in-process queue topic carrying index build requests.
const buildTopic = "index.build"

type Container struct {
	// Controllers
	RagController          controller.IRagController
	AgentController        controller.IAgentController
	ConversationController controller.IConversationController

	// Background Services (Exposed for main.go to run)
	IngestionService service.IIngestionService

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	pipelineLogger := logger.NewRotatingStdLogger("logs/rag_pipeline.log", "[RAG] ")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Vector Index
	var index store.VectorIndex
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to database: %v", err)
		}
		pgIndex, err := vecstore.NewPgVectorIndex(db)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize pgvector index: %v", err)
		}
		index = pgIndex
		log.Printf("[INFO] Using Vector Index: PGVECTOR")
	} else {
		localIndex, err := vecstore.NewLocalIndex(cfg.Retrieval.VectorDBPath)
		if err != nil {
			log.Fatalf("[FATAL] Failed to open local vector index: %v", err)
		}
		index = localIndex
		log.Printf("[INFO] Using Vector Index: LOCAL (%s)", cfg.Retrieval.VectorDBPath)
	}

	// 4. Model Providers
	var embeddingProvider embedding.EmbeddingProvider
	switch cfg.Providers.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Providers.OllamaBaseURL,
			cfg.Providers.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Providers.EmbeddingModel)
	case "gemini":
		embeddingProvider = embedding.NewGeminiProvider(
			cfg.Providers.GeminiKey,
			cfg.Providers.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: GEMINI (%s)", cfg.Providers.EmbeddingModel)
	default:
		embeddingProvider = embedding.NewOpenAIProvider(
			cfg.Providers.OpenAIBase,
			cfg.Providers.OpenAIKey,
			cfg.Providers.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Providers.EmbeddingModel)
	}

	factoryConfig := factory.Config{
		Model:           cfg.Providers.LLMModel,
		OpenAIBaseURL:   cfg.Providers.OpenAIBase,
		OpenAIKey:       cfg.Providers.OpenAIKey,
		GeminiBaseURL:   cfg.Providers.GeminiBase,
		GeminiKey:       cfg.Providers.GeminiKey,
		DeepSeekBaseURL: cfg.Providers.DeepSeekBase,
		DeepSeekKey:     cfg.Providers.DeepSeekKey,
		OllamaBaseURL:   cfg.Providers.OllamaBaseURL,
		OllamaModel:     cfg.Providers.OllamaModel,
		Defaults: llm.Options{
			Temperature: cfg.Providers.Temperature,
			MaxTokens:   cfg.Providers.MaxTokens,
		},
	}

	// Per-request provider/model overrides go through this resolver; an
	// empty provider name selects the configured default.
	var resolveLLM service.LLMResolver = func(providerType, model string) (llm.LLMProvider, error) {
		if providerType == "" {
			providerType = cfg.Providers.ModelProvider
		}
		fc := factoryConfig
		if model != "" {
			fc.Model = model
			fc.OllamaModel = model
		}
		return factory.NewLLMProvider(providerType, fc)
	}
	if _, err := resolveLLM("", ""); err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Providers.ModelProvider, cfg.Providers.LLMModel)

	// 5. Infrastructure
	// NATS
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
		}
	}

	// Redis
	var resultCache cache.Cache = cache.NewMemoryCache()
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Using in-process cache", err)
		} else {
			resultCache = cache.NewRedisCache(rdb)
			log.Printf("[INFO] Using Result Cache: REDIS")
		}
	}

	// 6. Retrieval Pipeline
	retriever := search.NewRetriever(
		index,
		embeddingProvider,
		resultCache,
		search.Config{
			Alpha: cfg.Retrieval.HybridAlpha,
			TopK:  cfg.Retrieval.TopK,
		},
		pipelineLogger,
	)
	queryRewriter := rewrite.Default()
	responseParser := response.NewParser(pipelineLogger)

	// 7. Repositories
	conversationRepo, err := convstore.NewConversationRepository(cfg.App.ConversationsDir)
	if err != nil {
		log.Fatalf("[FATAL] Failed to open conversation store: %v", err)
	}

	// 8. Services
	conversationService := service.NewConversationService(conversationRepo, natsPub)

	queryService := service.NewQueryService(
		index,
		retriever,
		queryRewriter,
		responseParser,
		resolveLLM,
		conversationRepo,
		cfg.Ingest.DocumentsDir,
		cfg.Retrieval.TopK,
		cfg.Timeouts.Request,
		pipelineLogger,
	)

	agentService := service.NewAgentService(
		resolveLLM,
		queryService,
		conversationRepo,
		retriever,
		cfg.Retrieval.TopK,
		cfg.Ingest.SearchGatewayURL,
		cfg.Ingest.FileToolRoot,
		cfg.Agent.MaxIterations,
		cfg.Timeouts.Request,
		pipelineLogger,
	)

	ingestionService := service.NewIngestionService(
		pubSub,
		buildTopic,
		index,
		embeddingProvider,
		natsPub,
		cfg.Ingest.DocumentsDir,
		cfg.Ingest.ChunkSize,
		cfg.Ingest.ChunkOverlap,
		logger.NewRotatingStdLogger("logs/ingestion.log", "[INGEST] "),
	)

	// 9. Controllers
	// Note: We return the container with public fields for the server to register
	return &Container{
		RagController:          controller.NewRagController(queryService, ingestionService, cfg.Timeouts.StreamIdle),
		AgentController:        controller.NewAgentController(agentService, conversationService, cfg.Timeouts.StreamIdle),
		ConversationController: controller.NewConversationController(conversationService),

		IngestionService: ingestionService,

		Logger: sysLogger,
	}
}
