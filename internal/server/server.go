package server

import (
	"log"

	"agentic-rag-be/internal/bootstrap"
	"agentic-rag-be/internal/config"
	"agentic-rag-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

// New assembles the Fiber app. CORS, tracing and the error envelope are
// mounted in that order so every handler error leaves as a BaseResponse.
func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		AppName:   "agentic-rag-backend",
		BodyLimit: 50 * 1024 * 1024, // document uploads
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CorsAllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))
	app.Use(otelfiber.Middleware())
	app.Use(serverutils.ErrorHandlerMiddleware())

	registerRoutes(app, container)

	return &Server{app: app, cfg: cfg, container: container}
}

// GetApp exposes the underlying Fiber app so tests can drive it with
// app.Test without opening a socket.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ agentic-rag-backend listening on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	c.RagController.RegisterRoutes(api)
	c.AgentController.RegisterRoutes(api)
	c.ConversationController.RegisterRoutes(api)
}
