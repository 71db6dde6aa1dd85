package dto

import "time"

// HistoryMessage is a prior turn supplied by the client instead of a stored
// conversation.
type HistoryMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

type QueryRequest struct {
	Question       string           `json:"question" validate:"required"`
	Provider       string           `json:"provider" validate:"omitempty,oneof=openai gemini deepseek ollama"`
	Model          string           `json:"model"`
	TopK           int              `json:"top_k" validate:"omitempty,min=1"`
	Method         string           `json:"method" validate:"omitempty,oneof=vector hybrid"`
	ConversationId string           `json:"conversation_id"`
	History        []HistoryMessage `json:"history" validate:"omitempty,dive"`
}

type SourceInfo struct {
	Source  string `json:"source"`
	Preview string `json:"preview"`
}

type QueryResponse struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []SourceInfo `json:"sources"`
}

type StatusResponse struct {
	VectorStoreLoaded bool `json:"vector_store_loaded"`
}

type UploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
	Path     string `json:"path"`
}

type BuildStartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BuildIndexMessage is the payload published to the build topic; the worker
// loop consumes it.
type BuildIndexMessage struct {
	TriggeredAt time.Time `json:"triggered_at"`
}

type DocumentInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type DocumentsResponse struct {
	Success   bool           `json:"success"`
	Documents []DocumentInfo `json:"documents"`
}
