package entity

import "time"

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	Id        string    `json:"conversation_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	LastTime  time.Time `json:"last_time"`
}

// ConversationSummary is computed from the stored document; it is never
// persisted itself.
type ConversationSummary struct {
	Id           string
	Title        string
	MessageCount int
	LastTime     time.Time
}
