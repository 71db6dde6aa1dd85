package controller

import (
	"context"
	"time"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAgentController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	SmartQuery(ctx *fiber.Ctx) error
	QueryStream(ctx *fiber.Ctx) error
	Tools(ctx *fiber.Ctx) error
	CreateConversation(ctx *fiber.Ctx) error
}

type agentController struct {
	agentService        service.IAgentService
	conversationService service.IConversationService
	streamIdle          time.Duration
}

func NewAgentController(
	agentService service.IAgentService,
	conversationService service.IConversationService,
	streamIdle time.Duration,
) IAgentController {
	return &agentController{
		agentService:        agentService,
		conversationService: conversationService,
		streamIdle:          streamIdle,
	}
}

func (c *agentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/agent")
	h.Post("/query", c.Query)
	h.Post("/smart-query", c.SmartQuery)
	h.Post("/query-stream", c.QueryStream)
	h.Get("/tools", c.Tools)
	h.Post("/conversation/create", c.CreateConversation)
}

func (c *agentController) Query(ctx *fiber.Ctx) error {
	var req dto.AgentQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.agentService.Query(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *agentController) SmartQuery(ctx *fiber.Ctx) error {
	var req dto.SmartQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.agentService.SmartQuery(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *agentController) QueryStream(ctx *fiber.Ctx) error {
	var req dto.AgentQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	return serverutils.StreamSSE(ctx, c.streamIdle, func(streamCtx context.Context, stream *serverutils.EventStream) {
		c.agentService.QueryStream(streamCtx, &req, stream)
	})
}

func (c *agentController) Tools(ctx *fiber.Ctx) error {
	res, err := c.agentService.Tools(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *agentController) CreateConversation(ctx *fiber.Ctx) error {
	res, err := c.conversationService.Create(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}
