package llm

import (
	"context"
)

// Message is one conversation turn in a provider-agnostic shape. History
// passed to RagAnswer and the agent loop travels as []Message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Chunk is one element of a completion stream. A provider delivers tokens in
// its native granularity; a failure mid-stream arrives as a final Chunk with
// Err set, after which the channel is closed.
type Chunk struct {
	Content string
	Err     error
}

// Option tunes a single completion call without widening the interface.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	Stop        []string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithStop(stop []string) Option {
	return func(o *Options) {
		o.Stop = stop
	}
}

// Apply copies the defaults and layers the given options on top.
func (o Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(&o)
	}
	return &o
}

// LLMProvider is the contract every completion backend satisfies.
type LLMProvider interface {
	// Complete sends a single prompt and returns the full response text.
	Complete(ctx context.Context, prompt string, options ...Option) (string, error)

	// StreamComplete sends a single prompt and returns a finite, ordered
	// stream of tokens. The channel is closed when the backend is done.
	StreamComplete(ctx context.Context, prompt string, options ...Option) (<-chan Chunk, error)
}
