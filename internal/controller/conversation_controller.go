package controller

import (
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type conversationController struct {
	conversationService service.IConversationService
}

func NewConversationController(conversationService service.IConversationService) IConversationController {
	return &conversationController{
		conversationService: conversationService,
	}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversations")
	h.Get("", c.List)
	h.Get(":id", c.History)
	h.Delete(":id", c.Delete)
}

func (c *conversationController) List(ctx *fiber.Ctx) error {
	res, err := c.conversationService.List(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *conversationController) History(ctx *fiber.Ctx) error {
	res, err := c.conversationService.History(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *conversationController) Delete(ctx *fiber.Ctx) error {
	if err := c.conversationService.Delete(ctx.Context(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("conversation deleted", nil))
}
