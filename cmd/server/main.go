package main

import (
	"context"
	"log"

	"agentic-rag-be/internal/bootstrap"
	"agentic-rag-be/internal/config"
	"agentic-rag-be/internal/server"
	"agentic-rag-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] Invalid configuration: %v", err)
	}

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	if err := container.IngestionService.Start(context.Background()); err != nil {
		log.Fatalf("[FATAL] Unable to start ingestion worker: %v", err)
	}

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
