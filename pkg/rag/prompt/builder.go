package prompt

import (
	"fmt"
	"strings"

	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/rag/response"
	"agentic-rag-be/pkg/store"
)

// maxHistoryMessages caps how many prior turns are replayed into the prompt.
const maxHistoryMessages = 6

// ContextBuilder assembles the grounded question prompt whose output the
// response parser consumes. The model is instructed to return a single JSON
// object so that streaming clients always receive a parseable answer.
type ContextBuilder struct {
	query    string
	passages []store.Passage
	history  []llm.Message
}

// NewContextBuilder creates a new context prompt builder.
func NewContextBuilder(query string, passages []store.Passage, history []llm.Message) *ContextBuilder {
	return &ContextBuilder{
		query:    query,
		passages: passages,
		history:  history,
	}
}

// Build renders the full prompt.
func (b *ContextBuilder) Build() string {
	var prompt strings.Builder

	b.writeInstructions(&prompt)
	b.writeHistory(&prompt)
	b.writeContext(&prompt)
	b.writeQuestion(&prompt)

	return prompt.String()
}

func (b *ContextBuilder) writeInstructions(prompt *strings.Builder) {
	prompt.WriteString("You are a knowledge base assistant. You must return exactly one valid JSON object, strictly in this format:\n")
	prompt.WriteString("{\"answer\": \"your complete answer here\"}\n")
	prompt.WriteString("Rules:\n")
	prompt.WriteString("1. Output only the JSON object, no other text before or after it\n")
	prompt.WriteString("2. The answer field must hold one complete, coherent answer\n")
	prompt.WriteString("3. Ensure the JSON is fully valid\n")
	prompt.WriteString("4. Answer only from the context below; do not bring in outside knowledge\n")
	prompt.WriteString("5. If the question is a bare entity or keyword, state the facts the context gives about it in one or two short sentences\n")
	prompt.WriteString(fmt.Sprintf("6. Only when the context truly holds nothing relevant to the question, set answer to: '%s'\n", response.Refusal))
	prompt.WriteString("\n")
}

func (b *ContextBuilder) writeHistory(prompt *strings.Builder) {
	history := b.history
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	if len(history) == 0 {
		return
	}

	prompt.WriteString("Conversation history:\n")
	for _, msg := range history {
		role := "User"
		if msg.Role == "assistant" {
			role = "Assistant"
		}
		prompt.WriteString(fmt.Sprintf("%s: %s\n", role, msg.Content))
	}
	prompt.WriteString("\n")
}

func (b *ContextBuilder) writeContext(prompt *strings.Builder) {
	prompt.WriteString("Context:\n")
	blocks := make([]string, len(b.passages))
	for i, p := range b.passages {
		blocks[i] = fmt.Sprintf("[%s] %s", p.Source, p.Text)
	}
	prompt.WriteString(strings.Join(blocks, "\n\n"))
	prompt.WriteString("\n\n")
}

func (b *ContextBuilder) writeQuestion(prompt *strings.Builder) {
	prompt.WriteString("Question:\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n\n")
	prompt.WriteString("Answer example: {\"answer\": \"an example answer\"}\n")
}
