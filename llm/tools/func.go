package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/api"
)

// Handler runs a tool with schema-validated arguments. The returned value
// must be JSON-serializable.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Func is a tool made from a name, a description, a schema and a handler.
// Agents declare their tool lists as Func values.
type Func struct {
	name        string
	description string
	schema      map[string]any
	handler     Handler
}

var _ Tool = (*Func)(nil)

// NewFunc creates a Func tool.
func NewFunc(name, description string, schema map[string]any, handler Handler) *Func {
	if schema == nil {
		schema = Object(map[string]any{})
	}
	return &Func{name: name, description: description, schema: schema, handler: handler}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Description() string { return f.description }

func (f *Func) Schema() map[string]any { return f.schema }

func (f *Func) Definition() *api.ToolDefinition {
	return ToOpenAISchema(f.name, f.description, f.schema)
}

// Execute calls the handler. A handler error becomes a failed result.
func (f *Func) Execute(ctx context.Context, input *ToolInput) (*ToolResult, error) {
	out, err := f.handler(ctx, input.Data)
	if err != nil {
		return Failure(err.Error()), nil
	}
	data, err := toData(out)
	if err != nil {
		return Failure(fmt.Sprintf("encode %s result: %v", f.name, err)), nil
	}
	return &ToolResult{Success: true, Data: data}, nil
}

// toData normalizes a handler result to plain JSON data. Objects are used
// as-is; anything else is wrapped under "result".
func toData(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, err
	}
	if m, ok := decoded.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"result": decoded}, nil
}
