package domain

import (
	"context"
	"strings"
)

// Mode selects the routing instruction set.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeAgent    Mode = "agent"
)

// HandlerKind identifies one of the five handling strategies.
type HandlerKind string

const (
	HandlerOrderHistory    HandlerKind = "order_history"
	HandlerProductSearch   HandlerKind = "product_search"
	HandlerProductDetails  HandlerKind = "product_details"
	HandlerGeneralInquiry  HandlerKind = "general_inquiry"
	HandlerCompareProducts HandlerKind = "compare_products"
)

// Routing codes emitted by the classifier.
const (
	CodeOrderHistory    = "1"
	CodeProductSearch   = "2"
	CodeProductDetails  = "3"
	CodeGeneralInquiry  = "4"
	CodeCompareProducts = "5"
)

// FallbackCode is the fixed routing code used when classification fails.
func FallbackCode(mode Mode) string {
	if mode == ModeAgent {
		return CodeProductDetails
	}
	return CodeGeneralInquiry
}

// HandlerForCode maps a routing code to a handler. Unrecognized codes fall
// through to the general inquiry handler; the decision is never undefined.
func HandlerForCode(code string) HandlerKind {
	switch strings.TrimSpace(code) {
	case CodeOrderHistory:
		return HandlerOrderHistory
	case CodeProductSearch:
		return HandlerProductSearch
	case CodeProductDetails:
		return HandlerProductDetails
	case CodeCompareProducts:
		return HandlerCompareProducts
	default:
		return HandlerGeneralInquiry
	}
}

// DisplayName returns the human-readable handler name used in routing
// decision records.
func (h HandlerKind) DisplayName() string {
	switch h {
	case HandlerOrderHistory:
		return "Order History Handler"
	case HandlerProductSearch:
		return "Product Search Handler"
	case HandlerProductDetails:
		return "Product Details Handler"
	case HandlerCompareProducts:
		return "Compare Products Handler"
	default:
		return "General Inquiry Handler"
	}
}

// TurnRequest carries one inbound user message plus the user context that
// rides along with it.
type TurnRequest struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name,omitempty"`
	UserMessage     string `json:"message"`
	Persona         string `json:"user_persona,omitempty"`
	DiscountPersona string `json:"user_discount_persona,omitempty"`
	Mode            Mode   `json:"mode,omitempty"`
}

// TurnHandler processes one user turn end to end. All user-visible output
// flows through the sink, not the return value; the returned error is for
// the caller's logging only.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sink OutputSink, req TurnRequest) error
}
