package service

import (
	"context"
	"fmt"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/repository/contract"

	"agentic-rag-be/pkg/events"
	pktNats "agentic-rag-be/pkg/nats" // Renamed to avoid collision
)

type IConversationService interface {
	Create(ctx context.Context) (*dto.ConversationCreateResponse, error)
	List(ctx context.Context) (*dto.ConversationListResponse, error)
	History(ctx context.Context, conversationId string) (*dto.ConversationHistoryResponse, error)
	Delete(ctx context.Context, conversationId string) error
}

type conversationService struct {
	conversationRepo contract.ConversationRepository
	eventPublisher   *pktNats.Publisher
}

func NewConversationService(conversationRepo contract.ConversationRepository, eventPublisher *pktNats.Publisher) IConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		eventPublisher:   eventPublisher,
	}
}

func (s *conversationService) Create(ctx context.Context) (*dto.ConversationCreateResponse, error) {
	conversation, err := s.conversationRepo.Create(ctx)
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		evt := events.NewConversationCreated(conversation.Id)
		// We log error but don't fail the request as notification is auxiliary
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish CONVERSATION_CREATED event: %v\n", err)
		}
	}

	return &dto.ConversationCreateResponse{
		ConversationId: conversation.Id,
		Message:        "conversation created",
	}, nil
}

func (s *conversationService) List(ctx context.Context) (*dto.ConversationListResponse, error) {
	summaries, err := s.conversationRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ConversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		item := dto.ConversationSummary{
			Id:           summary.Id,
			Title:        summary.Title,
			MessageCount: summary.MessageCount,
		}
		if !summary.LastTime.IsZero() {
			lastTime := summary.LastTime
			item.LastTime = &lastTime
		}
		items = append(items, item)
	}

	return &dto.ConversationListResponse{
		Success:       true,
		Conversations: items,
	}, nil
}

func (s *conversationService) History(ctx context.Context, conversationId string) (*dto.ConversationHistoryResponse, error) {
	conversation, err := s.conversationRepo.Load(ctx, conversationId)
	if err != nil {
		return nil, err
	}

	messages := make([]dto.ConversationMessage, 0, len(conversation.Messages))
	for _, message := range conversation.Messages {
		messages = append(messages, dto.ConversationMessage{
			Role:      message.Role,
			Content:   message.Content,
			CreatedAt: message.CreatedAt,
		})
	}

	return &dto.ConversationHistoryResponse{
		Success:        true,
		ConversationId: conversation.Id,
		Messages:       messages,
		Total:          len(messages),
	}, nil
}

func (s *conversationService) Delete(ctx context.Context, conversationId string) error {
	if err := s.conversationRepo.Delete(ctx, conversationId); err != nil {
		return err
	}

	if s.eventPublisher != nil {
		evt := events.NewConversationDeleted(conversationId)
		// We log error but don't fail the request as notification is auxiliary
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish CONVERSATION_DELETED event: %v\n", err)
		}
	}

	return nil
}
