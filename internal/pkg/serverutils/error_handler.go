package serverutils

import (
	"errors"

	"agentic-rag-be/internal/repository/contract"
	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts errors returned by handlers into the
// response envelope. Handlers return domain errors as-is; the status mapping
// lives here.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		message := err.Error()

		var validationErr *ValidationError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &validationErr):
			code = fiber.StatusBadRequest
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		case errors.Is(err, store.ErrIndexUnavailable):
			// Index not built yet, or a build is replacing it.
			code = fiber.StatusConflict
		case errors.Is(err, contract.ErrConversationNotFound):
			code = fiber.StatusNotFound
		default:
			switch llm.KindOf(err) {
			case llm.ErrKindUnreachable, llm.ErrKindTimeout:
				code = fiber.StatusBadGateway
			}
		}

		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
