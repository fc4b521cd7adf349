package domain

import (
	"context"
	"encoding/json"
)

// Tool is a named, schema-described operation the model may invoke.
type Tool interface {
	Name() string
	Schema() ToolSchema
	// Execute runs the tool and returns its structured result as JSON.
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// ToolExecutor dispatches tool invocations by name.
type ToolExecutor interface {
	// Execute validates input against the tool's schema and runs it.
	Execute(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)
	// Schemas returns the specs of the named tools, for offering to the model.
	Schemas(names ...string) []ToolSchema
}
