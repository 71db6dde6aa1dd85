package controller

import (
	"testing"
	"time"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/pkg/serverutils"
	"agentic-rag-be/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func newConversationTestApp(conversations *stubConversationService) *fiber.App {
	ctrl := NewConversationController(conversations)
	return newTestApp(func(api fiber.Router) {
		ctrl.RegisterRoutes(api)
	})
}

func TestConversationListEndpoint(t *testing.T) {
	lastTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conversations := &stubConversationService{
		listRes: &dto.ConversationListResponse{
			Success: true,
			Conversations: []dto.ConversationSummary{
				{Id: "conv-1", Title: "First question", MessageCount: 4, LastTime: &lastTime},
			},
		},
	}
	app := newConversationTestApp(conversations)

	resp := doRequest(t, app, "GET", "/api/conversations")

	assert.Equal(t, 200, resp.StatusCode)
	result := decodeBody[dto.ConversationListResponse](t, resp)
	assert.True(t, result.Success)
	assert.Len(t, result.Conversations, 1)
	assert.Equal(t, 4, result.Conversations[0].MessageCount)
	assert.NotNil(t, result.Conversations[0].LastTime)
}

func TestConversationHistoryEndpoint(t *testing.T) {
	conversations := &stubConversationService{
		historyRes: &dto.ConversationHistoryResponse{
			Success:        true,
			ConversationId: "conv-1",
			Messages: []dto.ConversationMessage{
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi"},
			},
			Total: 2,
		},
	}
	app := newConversationTestApp(conversations)

	resp := doRequest(t, app, "GET", "/api/conversations/conv-1")

	assert.Equal(t, 200, resp.StatusCode)
	result := decodeBody[dto.ConversationHistoryResponse](t, resp)
	assert.Equal(t, "conv-1", result.ConversationId)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "conv-1", conversations.gotHistoryId)
}

func TestConversationHistoryMissingMapsTo404(t *testing.T) {
	conversations := &stubConversationService{historyErr: contract.ErrConversationNotFound}
	app := newConversationTestApp(conversations)

	resp := doRequest(t, app, "GET", "/api/conversations/ghost")

	assert.Equal(t, 404, resp.StatusCode)
	result := decodeBody[serverutils.BaseResponse[any]](t, resp)
	assert.False(t, result.Success)
	assert.Equal(t, 404, result.Code)
}

func TestConversationDeleteEndpoint(t *testing.T) {
	conversations := &stubConversationService{}
	app := newConversationTestApp(conversations)

	resp := doRequest(t, app, "DELETE", "/api/conversations/conv-1")

	assert.Equal(t, 200, resp.StatusCode)
	result := decodeBody[serverutils.BaseResponse[any]](t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, "conversation deleted", result.Message)
	assert.Equal(t, "conv-1", conversations.gotDeleteId)
}

func TestConversationDeleteMissingMapsTo404(t *testing.T) {
	conversations := &stubConversationService{deleteErr: contract.ErrConversationNotFound}
	app := newConversationTestApp(conversations)

	resp := doRequest(t, app, "DELETE", "/api/conversations/ghost")

	assert.Equal(t, 404, resp.StatusCode)
}
