package domain

import "context"

// LLMProvider is the interface for any LLM backend.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "bedrock").
	Name() string
}

// StreamDelta is a single incremental event from a streaming LLM response.
// Exactly one of Text, ToolUse, ToolInput, or Done is meaningful per delta.
type StreamDelta struct {
	// Text is one narrative increment.
	Text string `json:"text,omitempty"`
	// ToolUse marks the start of a tool-invocation request. Input arrives
	// incrementally via subsequent ToolInput deltas.
	ToolUse *ToolCall `json:"tool_use,omitempty"`
	// ToolInput is one fragment of the pending tool call's JSON input.
	ToolInput string `json:"tool_input,omitempty"`
	// Done marks the end of the stream; Usage may accompany it.
	Done  bool   `json:"done,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
}

// StreamingLLMProvider extends LLMProvider with streaming support.
type StreamingLLMProvider interface {
	LLMProvider
	// ChatStream sends a request and returns a channel of incremental deltas.
	// Deltas are delivered in generation order; the channel is closed when
	// the stream ends.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, error)
}

// Classifier is a single-shot text classification capability. It returns the
// raw code emitted by the model, uninterpreted.
type Classifier interface {
	Classify(ctx context.Context, system, message string) (string, error)
}
