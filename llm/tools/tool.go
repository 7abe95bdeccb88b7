package tools

import (
	"context"
	"time"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

// ToolInput represents input data for tool execution
type ToolInput struct {
	Name   string         `json:"name"`
	Data   map[string]any `json:"data"`
	CallID string         `json:"call_id,omitempty"`
}

// ToolResult represents the result of tool execution. Tool failures are
// reported here with Success false, never as Go errors.
type ToolResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Stats   ToolStats      `json:"stats"`
}

// ToolStats tracks tool execution statistics
type ToolStats struct {
	ExecutionTime time.Duration `json:"execution_time"`
}

// Tool defines the interface that all tools must implement
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Definition() *api.ToolDefinition
	Execute(ctx context.Context, input *ToolInput) (*ToolResult, error)
}

// Failure builds an unsuccessful result.
func Failure(msg string) *ToolResult {
	return &ToolResult{Success: false, Error: msg}
}

// ToOpenAISchema wraps a schema in the function-calling envelope.
func ToOpenAISchema(name, description string, schema map[string]any) *api.ToolDefinition {
	return &api.ToolDefinition{
		Type: "function",
		Function: api.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
	}
}

// ToProviderDef converts a tool for a completion request.
func ToProviderDef(t Tool) shared.ToolDef {
	return shared.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		JSONSchema:  t.Schema(),
	}
}

// Object builds an object schema from its properties and required keys.
func Object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
