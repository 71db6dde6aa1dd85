package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// Result is what a tool invocation hands back to the agent: display text for
// the observation plus optional structured rows for trace events.
type Result struct {
	Text string
	Data []map[string]interface{}
}

// Tool defines the interface for an executable tool. Input is the model's
// serialised argument string; tools are side-effect-free with respect to
// conversation state and enforce their own timeouts.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (*Result, error)
}

// Registry holds registered tools and preserves registration order, which
// fixes both lookup and the catalogue shown to the model.
type Registry struct {
	order  []Tool
	byName map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the entry but keeps
// its original position.
func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name()]; exists {
		for i, cur := range r.order {
			if cur.Name() == t.Name() {
				r.order[i] = t
				break
			}
		}
	} else {
		r.order = append(r.order, t)
	}
	r.byName[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, t := range r.order {
		out[i] = t.Name()
	}
	return out
}

// Catalogue renders one "name: description" line per tool for the agent
// prompt.
func (r *Registry) Catalogue() string {
	var sb strings.Builder
	for _, t := range r.order {
		sb.WriteString("- ")
		sb.WriteString(t.Name())
		sb.WriteString(": ")
		sb.WriteString(t.Description())
		sb.WriteString("\n")
	}
	return sb.String()
}

// queryFromInput extracts a query from a serialised tool input. A JSON
// object carrying a "query" field is honored; anything else is taken
// verbatim.
func queryFromInput(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") {
		var params struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(trimmed), &params); err == nil && params.Query != "" {
			return params.Query
		}
	}
	return trimmed
}

// pathFromInput extracts a filesystem path from a serialised tool input,
// honoring a JSON object with a "path" field.
func pathFromInput(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") {
		var params struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal([]byte(trimmed), &params); err == nil && params.Path != "" {
			return params.Path
		}
	}
	return trimmed
}
