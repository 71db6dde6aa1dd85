package dto

type AgentQueryRequest struct {
	Question         string `json:"question" validate:"required"`
	AgentType        string `json:"agent_type" validate:"omitempty,oneof=simple full research manager"`
	Provider         string `json:"provider" validate:"omitempty,oneof=openai gemini deepseek ollama"`
	Model            string `json:"model"`
	MaxIterations    int    `json:"max_iterations" validate:"omitempty,min=1,max=30"`
	EnableReflection *bool  `json:"enable_reflection"`
	EnablePlanning   *bool  `json:"enable_planning"`
	ConversationId   string `json:"conversation_id"`
}

// ThoughtStep mirrors one ReAct step for the response trace.
type ThoughtStep struct {
	Step        int    `json:"step"`
	Thought     string `json:"thought"`
	Action      string `json:"action,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	Observation string `json:"observation,omitempty"`
}

type AgentQueryResponse struct {
	Success         bool          `json:"success"`
	Answer          string        `json:"answer"`
	ThoughtProcess  []ThoughtStep `json:"thought_process"`
	ToolsUsed       []string      `json:"tools_used"`
	Iterations      int           `json:"iterations"`
	FinalReflection string        `json:"final_reflection,omitempty"`
}

type SmartQueryRequest struct {
	Question       string `json:"question" validate:"required"`
	AgentType      string `json:"agent_type" validate:"omitempty,oneof=simple full research manager"`
	Provider       string `json:"provider" validate:"omitempty,oneof=openai gemini deepseek ollama"`
	ConversationId string `json:"conversation_id"`
}

type SmartQueryResponse struct {
	Success         bool          `json:"success"`
	Answer          string        `json:"answer"`
	ModeUsed        string        `json:"mode_used"`
	Sources         []SourceInfo  `json:"sources,omitempty"`
	ThoughtProcess  []ThoughtStep `json:"thought_process,omitempty"`
	ToolsUsed       []string      `json:"tools_used,omitempty"`
	Iterations      int           `json:"iterations,omitempty"`
	FinalReflection string        `json:"final_reflection,omitempty"`
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ToolsResponse struct {
	Success bool       `json:"success"`
	Tools   []ToolInfo `json:"tools"`
}
