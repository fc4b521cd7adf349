package domain

import (
	"context"
	"time"
)

// StoredMessage is one persisted conversation entry. Metadata is free-form
// bookkeeping (routing decisions, tool results, extracted IDs) that never
// reaches the model.
type StoredMessage struct {
	ID        string         `json:"id,omitempty"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SharedContext is the cross-handler context for one session: what has been
// shown or discussed, regardless of which handler did it.
type SharedContext struct {
	Products      []Product         `json:"products,omitempty"`
	Orders        []OrderSummary    `json:"orders,omitempty"`
	SearchHistory []string          `json:"search_history,omitempty"`
	Preferences   map[string]string `json:"user_preferences,omitempty"`
	UpdatedAt     time.Time         `json:"last_updated,omitempty"`
}

// SharedContextUpdate is a partial update merged into a session's shared
// context. Products, orders and search queries are appended; preferences
// replace the stored map when non-empty.
type SharedContextUpdate struct {
	Products    []Product
	Orders      []OrderSummary
	SearchQuery string
	Preferences map[string]string
}

// ConversationStore persists handler-isolated conversations, shared context
// and session records. Implementations own all consistency guarantees;
// callers treat writes as fire-and-forget.
type ConversationStore interface {
	// LoadHistory returns up to limit most recent messages for one
	// session/handler pair, oldest first.
	LoadHistory(ctx context.Context, sessionID string, handler HandlerKind, limit int) ([]StoredMessage, error)
	// AppendMessage appends one message to a session/handler conversation.
	AppendMessage(ctx context.Context, sessionID string, handler HandlerKind, msg StoredMessage) error

	// SharedContext returns the session's cross-handler context. A missing
	// record yields an empty context, not an error.
	SharedContext(ctx context.Context, sessionID string) (*SharedContext, error)
	// MergeSharedContext applies a partial update to the session's context.
	MergeSharedContext(ctx context.Context, sessionID string, update SharedContextUpdate) error

	// TouchSession creates or refreshes the session record with the given TTL.
	TouchSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	// SweepExpired removes expired sessions and their conversations,
	// returning the number of sessions removed.
	SweepExpired(ctx context.Context) (int, error)

	Close() error
}
