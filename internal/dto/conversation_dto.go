package dto

import "time"

type ConversationCreateResponse struct {
	ConversationId string `json:"conversation_id"`
	Message        string `json:"message"`
}

type ConversationSummary struct {
	Id           string     `json:"id"`
	Title        string     `json:"title"`
	MessageCount int        `json:"message_count"`
	LastTime     *time.Time `json:"last_time"`
}

type ConversationListResponse struct {
	Success       bool                  `json:"success"`
	Conversations []ConversationSummary `json:"conversations"`
}

type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationHistoryResponse struct {
	Success        bool                  `json:"success"`
	ConversationId string                `json:"conversation_id"`
	Messages       []ConversationMessage `json:"messages"`
	Total          int                   `json:"total"`
}
