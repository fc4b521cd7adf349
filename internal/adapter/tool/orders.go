package tool

import (
	"context"
	"encoding/json"

	"shopstream/internal/domain"
)

// OrderHistoryName is the tool name for order history lookups.
const OrderHistoryName = "get_order_history"

var orderHistorySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"user_id": {
			"type": "string",
			"description": "The ID of the user to get order history for"
		}
	},
	"required": ["user_id"]
}`)

// OrderHistoryTool returns a user's order history.
type OrderHistoryTool struct {
	orders domain.OrderBook
}

func NewOrderHistoryTool(orders domain.OrderBook) *OrderHistoryTool {
	return &OrderHistoryTool{orders: orders}
}

func (t *OrderHistoryTool) Name() string { return OrderHistoryName }

func (t *OrderHistoryTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        OrderHistoryName,
		Description: "Get order history for a user",
		InputSchema: orderHistorySchema,
	}
}

func (t *OrderHistoryTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var params struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, err
	}

	orders, err := t.orders.OrdersForUser(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	return json.Marshal(map[string]any{"orders": orders})
}

var _ domain.Tool = (*OrderHistoryTool)(nil)
