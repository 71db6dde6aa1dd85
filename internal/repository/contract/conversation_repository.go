package contract

import (
	"context"
	"errors"

	"agentic-rag-be/internal/entity"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository interface {
	// Create allocates a new conversation id. Nothing touches disk until the
	// first Append.
	Create(ctx context.Context) (*entity.Conversation, error)
	Append(ctx context.Context, id string, message entity.Message) error
	Load(ctx context.Context, id string) (*entity.Conversation, error)
	List(ctx context.Context) ([]entity.ConversationSummary, error)
	Delete(ctx context.Context, id string) error
}
