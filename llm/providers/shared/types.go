package shared

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one turn of an agent conversation. Assistant turns may carry
// ToolCalls; tool turns carry the ToolInvocation they answer.
type Message struct {
	Role           Role            `json:"role"`
	Content        string          `json:"content,omitempty"`
	ToolCalls      []ToolCall      `json:"tool_calls,omitempty"`
	ToolInvocation *ToolInvocation `json:"tool_invocation,omitempty"`
}

// ToolDef advertises a tool to the reasoning engine.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	JSONSchema  map[string]any `json:"json_schema,omitempty"`
}

// ToolCall is a tool the reasoning engine asked to run, with decoded arguments.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolInvocation is the structured result returned for a ToolCall.
type ToolInvocation struct {
	CallID string         `json:"call_id"`
	Name   string         `json:"name"`
	Result map[string]any `json:"result"`
}

// CompletionOptions tune a single completion.
type CompletionOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
	Tools       []ToolDef
}

// CompletionRequest is one round trip to the reasoning engine.
type CompletionRequest struct {
	Messages []Message
	Options  CompletionOptions
}

// TokenUsage counts tokens spent by a completion.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the engine's reply. Messages holds the assistant
// turn, including any tool calls.
type CompletionResponse struct {
	Content    string
	Messages   []Message
	Usage      TokenUsage
	StopReason string
}

// ToolCalls returns the tool calls of the first assistant message.
func (r *CompletionResponse) ToolCalls() []ToolCall {
	if r == nil {
		return nil
	}
	for _, m := range r.Messages {
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			return m.ToolCalls
		}
	}
	return nil
}

// LLMProvider is the reasoning engine the agents talk to.
type LLMProvider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Name() string
}
