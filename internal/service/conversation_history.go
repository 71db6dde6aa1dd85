package service

import (
	"context"
	"errors"
	"log"

	"agentic-rag-be/internal/entity"
	"agentic-rag-be/internal/repository/contract"
	"agentic-rag-be/pkg/llm"
)

// conversationMessages loads the stored turns for an id. A missing or stale
// id yields nil so callers proceed with an empty history; the conversation
// restarts under that id on the next append.
func conversationMessages(ctx context.Context, repo contract.ConversationRepository, logger *log.Logger, conversationId string) []entity.Message {
	if conversationId == "" {
		return nil
	}
	conversation, err := repo.Load(ctx, conversationId)
	if err != nil {
		if !errors.Is(err, contract.ErrConversationNotFound) {
			logger.Printf("load conversation %s: %v", conversationId, err)
		}
		return nil
	}
	return conversation.Messages
}

// appendConversationTurn persists one message when a conversation is active.
// Persistence failures are logged, never surfaced: the answer still reaches
// the client.
func appendConversationTurn(ctx context.Context, repo contract.ConversationRepository, logger *log.Logger, conversationId, role, content string) {
	if conversationId == "" || content == "" {
		return
	}
	message := entity.Message{Role: role, Content: content}
	if err := repo.Append(ctx, conversationId, message); err != nil {
		logger.Printf("append %s turn to %s: %v", role, conversationId, err)
	}
}

func toLLMMessages(messages []entity.Message) []llm.Message {
	if len(messages) == 0 {
		return nil
	}
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
