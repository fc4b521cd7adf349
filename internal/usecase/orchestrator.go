package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shopstream/internal/domain"
	"shopstream/internal/infra/tracer"
)

// ToolKeywordSearch is the product search tool offered to the model in the
// search and comparison flows.
const ToolKeywordSearch = "keyword_product_search"

// OrchestratorDeps wires the orchestrator's collaborators.
type OrchestratorDeps struct {
	Router  *Router
	Context *ContextBuilder
	LLM     domain.StreamingLLMProvider
	Tools   domain.ToolExecutor
	Store   domain.ConversationStore
	Orders  domain.OrderBook
	Reviews domain.ReviewReader
	Logger  *slog.Logger

	Model       string
	MaxTokens   int
	Temperature float64
	SessionTTL  time.Duration
}

// Orchestrator processes one user turn end to end: route the message to a
// handler, build that handler's isolated conversation, stream the model's
// answer through a StreamParser, and persist the transcript. It implements
// domain.TurnHandler.
type Orchestrator struct {
	deps OrchestratorDeps
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// HandleTurn routes and answers one user message. Any handler failure is
// reported to the client as a single generic error event; the returned error
// carries the detail for the caller's logs.
func (o *Orchestrator) HandleTurn(ctx context.Context, sink domain.OutputSink, req domain.TurnRequest) error {
	ctx, span := tracer.StartSpan(ctx, "turn.handle")
	defer span.End()

	if err := o.deps.Store.TouchSession(ctx, req.SessionID, req.UserID, o.deps.SessionTTL); err != nil {
		o.deps.Logger.Warn("touch session failed", "session_id", req.SessionID, "error", err)
	}

	code := o.deps.Router.Route(ctx, req.UserMessage, req.Mode)
	kind := domain.HandlerForCode(code)
	o.deps.Logger.Info("dispatching turn",
		"session_id", req.SessionID, "user_id", req.UserID, "handler", kind)

	o.saveMessage(ctx, req.SessionID, kind, domain.RoleUser, req.UserMessage, map[string]any{
		"routing_code": strings.TrimSpace(code),
		"routed_to":    kind.DisplayName(),
	})

	var err error
	switch kind {
	case domain.HandlerOrderHistory:
		err = o.handleOrderHistory(ctx, sink, req)
	case domain.HandlerProductSearch:
		err = o.handleWithSearchTool(ctx, sink, req, domain.HandlerProductSearch)
	case domain.HandlerCompareProducts:
		err = o.handleWithSearchTool(ctx, sink, req, domain.HandlerCompareProducts)
	case domain.HandlerProductDetails:
		err = o.handleProductDetails(ctx, sink, req)
	default:
		err = o.handleGeneralInquiry(ctx, sink, req)
	}
	if err != nil {
		tracer.RecordError(span, err)
		o.sendError(ctx, sink, errorPhrase(kind))
		return err
	}

	tracer.SetOK(span)
	return nil
}

func (o *Orchestrator) handleOrderHistory(ctx context.Context, sink domain.OutputSink, req domain.TurnRequest) error {
	ctx, span := tracer.StartSpan(ctx, "turn.order_history")
	defer span.End()

	o.sendWait(ctx, sink, "Getting order history...")

	orders, err := o.deps.Orders.OrdersForUser(ctx, req.UserID)
	if err != nil {
		return domain.WrapOp("fetch order history", err)
	}

	if len(orders) > 0 {
		summaries := make([]domain.OrderSummary, 0, len(orders))
		for _, ord := range orders {
			summaries = append(summaries, ord.Summary())
		}
		o.mergeShared(ctx, req.SessionID, domain.SharedContextUpdate{Orders: summaries})
	}

	prompt := orderHistoryPrompt(orders)
	if block := o.deps.Context.ContextBlock(ctx, req.SessionID); block != "" {
		prompt += "\n\nAdditional Context:\n" + block
	}

	messages := o.deps.Context.BuildMessages(ctx, req.SessionID, domain.HandlerOrderHistory, req.UserMessage)
	parser := NewStreamParser(sink, o.deps.Logger, nil, orders)

	if _, err := o.streamLeg(ctx, sink, parser, o.chatRequest(prompt, messages, nil), ""); err != nil {
		return err
	}
	parser.Finalize(ctx)

	if resp := parser.CompleteResponse(); resp != "" {
		orderIDs := make([]string, 0, len(orders))
		for _, ord := range orders {
			orderIDs = append(orderIDs, ord.OrderID)
		}
		o.saveMessage(ctx, req.SessionID, domain.HandlerOrderHistory, domain.RoleAssistant, resp, map[string]any{
			"response_type": string(domain.HandlerOrderHistory),
			"total_orders":  len(orders),
			"order_ids":     orderIDs,
		})
	}
	return nil
}

// handleWithSearchTool runs the streaming-with-tools flow shared by product
// search and comparison: stream the first leg, and if the model requests the
// search tool, execute it and stream one continuation leg seeded with the
// results.
func (o *Orchestrator) handleWithSearchTool(ctx context.Context, sink domain.OutputSink, req domain.TurnRequest, kind domain.HandlerKind) error {
	ctx, span := tracer.StartSpan(ctx, "turn."+string(kind))
	defer span.End()

	var prompt, toolWait string
	switch kind {
	case domain.HandlerCompareProducts:
		prompt = compareProductsPrompt
		toolWait = "Searching for products to compare..."
	default:
		o.sendWait(ctx, sink, "Searching for products...")
		prompt = productSearchPrompt(req.UserID, req.Persona, req.DiscountPersona)
	}
	if block := o.deps.Context.ContextBlock(ctx, req.SessionID); block != "" {
		prompt += "\n\nAdditional Context:\n" + block
	}

	messages := o.deps.Context.BuildMessages(ctx, req.SessionID, kind, req.UserMessage)
	tools := o.deps.Tools.Schemas(ToolKeywordSearch)

	parser := NewStreamParser(sink, o.deps.Logger, nil, nil)
	call, err := o.streamLeg(ctx, sink, parser, o.chatRequest(prompt, messages, tools), toolWait)
	if err != nil {
		return err
	}

	if call == nil {
		parser.Finalize(ctx)
		if resp := parser.CompleteResponse(); resp != "" {
			o.saveMessage(ctx, req.SessionID, kind, domain.RoleAssistant, resp, map[string]any{
				"response_type": responseType(kind),
			})
		}
		return nil
	}

	// The model asked for a product search; run it and continue the turn
	// with the results in context.
	hits, keywords, err := o.runSearchTool(ctx, req.SessionID, kind, *call)
	if err != nil {
		return err
	}

	messages = append(messages,
		domain.Message{
			Role:      domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{*call},
			Timestamp: time.Now(),
		},
		domain.Message{
			Role:      domain.RoleTool,
			Content:   encodeToolResult(hits),
			ToolCalls: []domain.ToolCall{{ID: call.ID}},
			Timestamp: time.Now(),
		},
	)

	continuation := NewStreamParser(sink, o.deps.Logger, hits, nil)
	if _, err := o.streamLeg(ctx, sink, continuation, o.chatRequest(prompt, messages, tools), ""); err != nil {
		return err
	}
	continuation.Finalize(ctx)

	if resp := continuation.CompleteResponse(); resp != "" {
		meta := map[string]any{
			"response_type":  responseType(kind),
			"products_found": len(hits),
			"product_ids":    hitIDs(hits),
		}
		if kind == domain.HandlerProductSearch {
			meta["search_keywords"] = keywords
		}
		o.saveMessage(ctx, req.SessionID, kind, domain.RoleAssistant, resp, meta)
	}
	return nil
}

func (o *Orchestrator) handleProductDetails(ctx context.Context, sink domain.OutputSink, req domain.TurnRequest) error {
	ctx, span := tracer.StartSpan(ctx, "turn.product_details")
	defer span.End()

	shared := o.deps.Context.Shared(ctx, req.SessionID)
	productIDs := make([]string, 0, len(shared.Products))
	for _, p := range shared.Products {
		if p.ID != "" {
			productIDs = append(productIDs, p.ID)
		}
	}

	var reviews map[string]domain.ProductReviews
	if len(productIDs) > 0 {
		capped := productIDs
		if len(capped) > 10 {
			capped = capped[:10]
		}
		var err error
		reviews, err = o.deps.Reviews.ReviewsFor(ctx, capped)
		if err != nil {
			o.deps.Logger.Error("fetch reviews failed", "error", err)
		}
	}

	prompt := productDetailsPrompt(req.Persona, req.DiscountPersona, reviews)
	if block := o.deps.Context.ContextBlock(ctx, req.SessionID); block != "" {
		prompt += "\n\nShared Context:\n" + block
	}

	messages := o.deps.Context.BuildMessages(ctx, req.SessionID, domain.HandlerProductDetails, req.UserMessage)
	parser := NewStreamParser(sink, o.deps.Logger, nil, nil)

	if _, err := o.streamLeg(ctx, sink, parser, o.chatRequest(prompt, messages, nil), ""); err != nil {
		return err
	}
	parser.Finalize(ctx)

	if resp := parser.CompleteResponse(); resp != "" {
		referenced := productIDs
		if len(referenced) > 5 {
			referenced = referenced[:5]
		}
		o.saveMessage(ctx, req.SessionID, domain.HandlerProductDetails, domain.RoleAssistant, resp, map[string]any{
			"response_type":       string(domain.HandlerProductDetails),
			"referenced_products": referenced,
		})
	}
	return nil
}

func (o *Orchestrator) handleGeneralInquiry(ctx context.Context, sink domain.OutputSink, req domain.TurnRequest) error {
	ctx, span := tracer.StartSpan(ctx, "turn.general_inquiry")
	defer span.End()

	prompt := generalInquiryPrompt
	if block := o.deps.Context.ContextBlock(ctx, req.SessionID); block != "" {
		prompt += "\n\nAdditional Context (for reference only):\n" + block
	}

	messages := o.deps.Context.BuildMessages(ctx, req.SessionID, domain.HandlerGeneralInquiry, req.UserMessage)
	parser := NewStreamParser(sink, o.deps.Logger, nil, nil)

	if _, err := o.streamLeg(ctx, sink, parser, o.chatRequest(prompt, messages, nil), ""); err != nil {
		return err
	}
	parser.Finalize(ctx)

	if resp := parser.CompleteResponse(); resp != "" {
		o.saveMessage(ctx, req.SessionID, domain.HandlerGeneralInquiry, domain.RoleAssistant, resp, map[string]any{
			"response_type": string(domain.HandlerGeneralInquiry),
		})
	}
	return nil
}

// streamLeg consumes one streaming response. Text deltas flow into the
// parser; a tool-use request flushes pending narrative and is returned with
// its accumulated input for the caller to execute. Only the first tool
// request in a leg is honored. toolWait, when non-empty, is announced to the
// client as soon as a search tool request starts.
func (o *Orchestrator) streamLeg(ctx context.Context, sink domain.OutputSink, parser *StreamParser, req domain.ChatRequest, toolWait string) (*domain.ToolCall, error) {
	deltas, err := o.deps.LLM.ChatStream(ctx, req)
	if err != nil {
		return nil, domain.WrapOp("start stream", err)
	}

	var pending *domain.ToolCall
	var inputBuf strings.Builder

	for delta := range deltas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case delta.ToolUse != nil:
			if pending != nil {
				o.deps.Logger.Warn("ignoring extra tool request in leg", "tool", delta.ToolUse.Name)
				continue
			}
			pending = &domain.ToolCall{ID: delta.ToolUse.ID, Name: delta.ToolUse.Name}
			parser.Flush(ctx)
			if toolWait != "" && pending.Name == ToolKeywordSearch {
				o.sendWait(ctx, sink, toolWait)
			}
		case delta.ToolInput != "":
			if pending != nil {
				inputBuf.WriteString(delta.ToolInput)
			}
		case delta.Text != "":
			parser.ParseChunk(ctx, delta.Text)
		}
	}

	if pending != nil {
		pending.Input = salvageToolInput(inputBuf.String(), o.deps.Logger)
	}
	return pending, nil
}

// runSearchTool executes the keyword search, records the results in shared
// context, and persists a tool-result entry in the handler's conversation.
func (o *Orchestrator) runSearchTool(ctx context.Context, sessionID string, kind domain.HandlerKind, call domain.ToolCall) ([]domain.SearchHit, []string, error) {
	raw, err := o.deps.Tools.Execute(ctx, call.Name, call.Input)
	if err != nil {
		return nil, nil, domain.WrapOp("execute "+call.Name, err)
	}

	var result struct {
		Results []domain.SearchHit `json:"results"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, domain.WrapOp("decode tool result", err)
	}
	hits := result.Results

	var input struct {
		QueryKeywords []string `json:"query_keywords"`
	}
	_ = json.Unmarshal(call.Input, &input)
	keywords := input.QueryKeywords

	if len(hits) > 0 {
		products := make([]domain.Product, 0, len(hits))
		for _, h := range hits {
			products = append(products, h.Source)
		}
		o.mergeShared(ctx, sessionID, domain.SharedContextUpdate{
			Products:    products,
			SearchQuery: strings.Join(keywords, ", "),
		})
	}

	label := "Tool result for search"
	responseKind := "product_search_tool_result"
	if kind == domain.HandlerCompareProducts {
		label = "Tool result for comparison search"
		responseKind = "product_comparison_tool_result"
	}
	o.saveMessage(ctx, sessionID, kind, domain.RoleUser,
		fmt.Sprintf("%s: %s", label, strings.Join(keywords, ", ")),
		map[string]any{
			"message_type":  "tool_result",
			"tool_name":     call.Name,
			"response_type": responseKind,
			"results_count": len(hits),
		})

	return hits, keywords, nil
}

func (o *Orchestrator) chatRequest(system string, messages []domain.Message, tools []domain.ToolSchema) domain.ChatRequest {
	return domain.ChatRequest{
		Model:       o.deps.Model,
		System:      system,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   o.deps.MaxTokens,
		Temperature: o.deps.Temperature,
	}
}

func (o *Orchestrator) saveMessage(ctx context.Context, sessionID string, kind domain.HandlerKind, role, content string, metadata map[string]any) {
	err := o.deps.Store.AppendMessage(ctx, sessionID, kind, domain.StoredMessage{
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now(),
	})
	if err != nil {
		o.deps.Logger.Error("persist message failed",
			"session_id", sessionID, "handler", kind, "role", role, "error", err)
	}
}

func (o *Orchestrator) mergeShared(ctx context.Context, sessionID string, update domain.SharedContextUpdate) {
	if err := o.deps.Store.MergeSharedContext(ctx, sessionID, update); err != nil {
		o.deps.Logger.Error("merge shared context failed", "session_id", sessionID, "error", err)
	}
}

func (o *Orchestrator) sendWait(ctx context.Context, sink domain.OutputSink, message string) {
	if err := sink.Send(ctx, domain.ClientEvent{Type: domain.EventWait, Message: message}); err != nil {
		o.deps.Logger.Warn("send wait failed", "error", err)
	}
}

func (o *Orchestrator) sendError(ctx context.Context, sink domain.OutputSink, phrase string) {
	err := sink.Send(ctx, domain.ClientEvent{
		Type:    domain.EventError,
		Message: "Sorry, I encountered an error: " + phrase,
	})
	if err != nil {
		o.deps.Logger.Warn("send error event failed", "error", err)
	}
}

func errorPhrase(kind domain.HandlerKind) string {
	switch kind {
	case domain.HandlerOrderHistory:
		return "retrieving your order history"
	case domain.HandlerProductSearch:
		return "searching for products"
	default:
		return "processing your request"
	}
}

func responseType(kind domain.HandlerKind) string {
	if kind == domain.HandlerCompareProducts {
		return "product_comparison"
	}
	return string(kind)
}

func hitIDs(hits []domain.SearchHit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Source.ID)
	}
	return ids
}

func encodeToolResult(hits []domain.SearchHit) string {
	payload := map[string]any{"results": hits}
	b, err := json.Marshal(payload)
	if err != nil {
		return `{"results":[]}`
	}
	return string(b)
}

// salvageToolInput repairs a streamed tool-input buffer. Malformed JSON is
// common when a stream is cut mid-input; if the keyword array survived, the
// call can still proceed.
func salvageToolInput(raw string, logger *slog.Logger) json.RawMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}

	const key = `"query_keywords"`
	if i := strings.Index(raw, key); i >= 0 {
		rest := raw[i+len(key):]
		if j := strings.Index(rest, "["); j >= 0 {
			if k := strings.Index(rest[j:], "]"); k >= 0 {
				arr := rest[j : j+k+1]
				if json.Valid([]byte(arr)) {
					logger.Warn("recovered keywords from malformed tool input")
					return json.RawMessage(`{"query_keywords":` + arr + `}`)
				}
			}
		}
	}

	logger.Error("unparseable tool input, using empty object", "raw", raw)
	return json.RawMessage("{}")
}
