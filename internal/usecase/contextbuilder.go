package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"shopstream/internal/domain"
)

const contextEncoding = "cl100k_base"

// ContextBuilder assembles the message array for one handler turn: the
// handler-isolated history, the current user message, and a shared-context
// block other handlers contributed to.
type ContextBuilder struct {
	store        domain.ConversationStore
	logger       *slog.Logger
	historyLimit int
	tokenBudget  int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewContextBuilder creates a context builder. historyLimit caps how many
// stored messages are loaded; tokenBudget caps the total encoded size of the
// history (0 disables the budget).
func NewContextBuilder(store domain.ConversationStore, logger *slog.Logger, historyLimit, tokenBudget int) *ContextBuilder {
	return &ContextBuilder{
		store:        store,
		logger:       logger,
		historyLimit: historyLimit,
		tokenBudget:  tokenBudget,
	}
}

// BuildMessages returns the conversation for a session/handler pair with the
// current user message appended. A store failure degrades to just the user
// message so the turn always proceeds.
func (cb *ContextBuilder) BuildMessages(ctx context.Context, sessionID string, handler domain.HandlerKind, userMessage string) []domain.Message {
	current := domain.Message{
		Role:      domain.RoleUser,
		Content:   userMessage,
		Timestamp: time.Now(),
	}

	stored, err := cb.store.LoadHistory(ctx, sessionID, handler, cb.historyLimit)
	if err != nil {
		cb.logger.Error("load history failed, continuing without it",
			"session_id", sessionID, "handler", handler, "error", err)
		return []domain.Message{current}
	}

	messages := make([]domain.Message, 0, len(stored)+1)
	for _, m := range stored {
		messages = append(messages, domain.Message{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	messages = append(messages, current)

	return cb.trimToBudget(messages)
}

// ContextBlock renders the session's shared context as a prompt fragment so
// a handler can reference what other handlers showed, without contaminating
// its own message history. Returns "" when there is nothing to report.
func (cb *ContextBuilder) ContextBlock(ctx context.Context, sessionID string) string {
	shared, err := cb.store.SharedContext(ctx, sessionID)
	if err != nil {
		cb.logger.Error("load shared context failed", "session_id", sessionID, "error", err)
		return ""
	}
	if shared == nil {
		return ""
	}

	var parts []string
	parts = append(parts, "Current time: "+time.Now().UTC().Format(time.RFC3339))

	if n := len(shared.Products); n > 0 {
		parts = append(parts, "Recently viewed products:")
		for _, p := range lastN(shared.Products, 5) {
			parts = append(parts, fmt.Sprintf("- %s (ID: %s)", p.Name, p.ID))
		}
	}
	if n := len(shared.Orders); n > 0 {
		parts = append(parts, "Recent order references:")
		for _, o := range lastN(shared.Orders, 3) {
			parts = append(parts, fmt.Sprintf("- Order %s (%s)", o.OrderID, o.Status))
		}
	}
	if n := len(shared.SearchHistory); n > 0 {
		parts = append(parts, "Recent search queries:")
		for _, q := range lastN(shared.SearchHistory, 5) {
			parts = append(parts, fmt.Sprintf("- %q", q))
		}
	}

	if len(parts) == 1 {
		return ""
	}
	parts = append(parts[:1], append([]string{"Previous session context:"}, parts[1:]...)...)
	return strings.Join(parts, "\n")
}

// Shared returns the session's raw shared context, empty when the store has
// no record or fails.
func (cb *ContextBuilder) Shared(ctx context.Context, sessionID string) *domain.SharedContext {
	shared, err := cb.store.SharedContext(ctx, sessionID)
	if err != nil || shared == nil {
		if err != nil {
			cb.logger.Error("load shared context failed", "session_id", sessionID, "error", err)
		}
		return &domain.SharedContext{}
	}
	return shared
}

// trimToBudget drops oldest messages until the encoded history fits the
// token budget. The final (current) message is always kept.
func (cb *ContextBuilder) trimToBudget(messages []domain.Message) []domain.Message {
	if cb.tokenBudget <= 0 || len(messages) <= 1 {
		return messages
	}

	total := 0
	counts := make([]int, len(messages))
	for i, m := range messages {
		counts[i] = cb.countTokens(m.Content)
		total += counts[i]
	}

	start := 0
	for total > cb.tokenBudget && start < len(messages)-1 {
		total -= counts[start]
		start++
	}
	if start > 0 {
		cb.logger.Info("trimmed history to token budget",
			"dropped", start, "kept", len(messages)-start, "tokens", total)
	}
	return messages[start:]
}

// countTokens encodes with cl100k_base, falling back to a bytes/4 estimate
// if the encoding is unavailable.
func (cb *ContextBuilder) countTokens(text string) int {
	cb.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(contextEncoding)
		if err != nil {
			cb.logger.Warn("tiktoken encoding unavailable, estimating", "error", err)
			return
		}
		cb.enc = enc
	})
	if cb.enc == nil {
		return len(text) / 4
	}
	return len(cb.enc.Encode(text, nil, nil))
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
