package controller

import (
	"context"
	"fmt"
	"time"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/internal/service"
	"agentic-rag-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

type IRagController interface {
	RegisterRoutes(r fiber.Router)
	Status(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	BuildStart(ctx *fiber.Ctx) error
	BuildProgress(ctx *fiber.Ctx) error
	Documents(ctx *fiber.Ctx) error
	Query(ctx *fiber.Ctx) error
	QueryStream(ctx *fiber.Ctx) error
}

type ragController struct {
	queryService     service.IQueryService
	ingestionService service.IIngestionService
	streamIdle       time.Duration
}

func NewRagController(
	queryService service.IQueryService,
	ingestionService service.IIngestionService,
	streamIdle time.Duration,
) IRagController {
	return &ragController{
		queryService:     queryService,
		ingestionService: ingestionService,
		streamIdle:       streamIdle,
	}
}

func (c *ragController) RegisterRoutes(r fiber.Router) {
	r.Get("/status", c.Status)
	r.Post("/upload", c.Upload)
	r.Post("/build-start", c.BuildStart)
	r.Get("/build-progress", c.BuildProgress)
	r.Get("/documents", c.Documents)
	r.Post("/query", c.Query)
	r.Post("/query-stream", c.QueryStream)
}

func (c *ragController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(c.queryService.Status(ctx.Context()))
}

func (c *ragController) Upload(ctx *fiber.Ctx) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "file is required"))
	}

	res, err := c.ingestionService.SaveDocument(ctx.Context(), file)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *ragController) BuildStart(ctx *fiber.Ctx) error {
	res, err := c.ingestionService.RequestBuild(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *ragController) BuildProgress(ctx *fiber.Ctx) error {
	return ctx.JSON(c.ingestionService.Progress(ctx.Context()))
}

func (c *ragController) Documents(ctx *fiber.Ctx) error {
	res, err := c.queryService.Documents(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *ragController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.queryService.Query(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

// QueryStream answers over SSE. The index check runs before the response
// switches to a stream; inside the stream only error events can signal
// failure.
func (c *ragController) QueryStream(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if !c.queryService.Ready(ctx.Context()) {
		return fmt.Errorf("knowledge base not built: %w", store.ErrIndexUnavailable)
	}

	return serverutils.StreamSSE(ctx, c.streamIdle, func(streamCtx context.Context, stream *serverutils.EventStream) {
		c.queryService.QueryStream(streamCtx, &req, stream)
	})
}
