package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel/trace"

	"shopstream/internal/domain"
	"shopstream/internal/infra/tracer"
)

type entry struct {
	tool   domain.Tool
	schema *jsonschema.Schema
}

// Registry dispatches tool invocations by name, validating input against
// each tool's JSON schema before execution.
type Registry struct {
	tools  map[string]entry
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]entry),
		logger: logger,
	}
}

// Register adds a tool, compiling its input schema. Registration fails on an
// uncompilable schema rather than deferring the failure to the first call.
func (r *Registry) Register(t domain.Tool) error {
	spec := t.Schema()

	var compiled *jsonschema.Schema
	if len(spec.InputSchema) > 0 && string(spec.InputSchema) != "null" {
		compiler := jsonschema.NewCompiler()
		schema, err := compiler.Compile([]byte(spec.InputSchema))
		if err != nil {
			return fmt.Errorf("compile schema for %q: %w", t.Name(), err)
		}
		compiled = schema
	}

	r.tools[t.Name()] = entry{tool: t, schema: compiled}
	return nil
}

// Execute implements domain.ToolExecutor.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	ctx, span := tracer.StartSpan(ctx, "tool.execute",
		trace.WithAttributes(tracer.StringAttr("tool.name", name)),
	)
	defer span.End()

	e, ok := r.tools[name]
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
		tracer.RecordError(span, err)
		return nil, err
	}

	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	if e.schema != nil {
		var v any
		if err := json.Unmarshal(input, &v); err != nil {
			err = fmt.Errorf("%w: tool %s input is not valid JSON: %v", domain.ErrInvalidInput, name, err)
			tracer.RecordError(span, err)
			return nil, err
		}
		if result := e.schema.Validate(v); !result.IsValid() {
			err := fmt.Errorf("%w: tool %s input rejected: %v", domain.ErrInvalidInput, name, result.Error())
			tracer.RecordError(span, err)
			return nil, err
		}
	}

	out, err := e.tool.Execute(ctx, input)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", domain.ErrToolFailure, name, err)
		tracer.RecordError(span, wrapped)
		return nil, wrapped
	}

	tracer.SetOK(span)
	r.logger.Debug("tool executed", "tool", name, "result_bytes", len(out))
	return out, nil
}

// Schemas implements domain.ToolExecutor. Specs come back in request order;
// unknown names are skipped.
func (r *Registry) Schemas(names ...string) []domain.ToolSchema {
	specs := make([]domain.ToolSchema, 0, len(names))
	for _, name := range names {
		if e, ok := r.tools[name]; ok {
			specs = append(specs, e.tool.Schema())
		}
	}
	return specs
}

var _ domain.ToolExecutor = (*Registry)(nil)
