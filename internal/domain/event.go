package domain

import "context"

// EventType identifies the kind of event pushed to a connected client.
type EventType string

const (
	EventTextChunk     EventType = "text_chunk"
	EventProductSearch EventType = "product_search"
	EventOrder         EventType = "order"
	EventWait          EventType = "wait"
	EventError         EventType = "error"
	EventStreamEnd     EventType = "stream_end"
)

// ClientEvent is the envelope pushed to the client over the WebSocket.
// Field population per type:
//
//	text_chunk     — Content (string)
//	product_search — Results
//	order          — Content (OrderSummary)
//	wait, error    — Message
//	stream_end     — type only
type ClientEvent struct {
	Type    EventType   `json:"type"`
	Content any         `json:"content,omitempty"`
	Message string      `json:"message,omitempty"`
	Results []SearchHit `json:"results,omitempty"`
}

// TextChunk builds a text_chunk event.
func TextChunk(text string) ClientEvent {
	return ClientEvent{Type: EventTextChunk, Content: text}
}

// OutputSink delivers events to the connected client. Sends are
// fire-and-forget from the caller's perspective: a failed send reports an
// error for logging but must not abort the producing flow.
type OutputSink interface {
	Send(ctx context.Context, event ClientEvent) error
	// Alive reports whether the underlying connection is still usable.
	Alive() bool
}
