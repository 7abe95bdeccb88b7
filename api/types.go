package api

import (
	"time"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
)

// ExecuteAgentRequest represents a request to run one agent
type ExecuteAgentRequest struct {
	Request   string              `json:"request"`
	Context   []agents.StepOutput `json:"context,omitempty"`
	Data      map[string]any      `json:"data,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
}

// ExecuteToolRequest represents a request to execute a tool
type ExecuteToolRequest struct {
	Input map[string]any `json:"input"`
}

// WorkflowRequest asks the coordinator to run a workflow. Class is optional.
type WorkflowRequest struct {
	Prompt    string `json:"prompt"`
	Class     string `json:"class,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// AgentResponse represents the response from agent execution
type AgentResponse struct {
	Success     bool                    `json:"success"`
	Result      string                  `json:"result,omitempty"`
	Invocations []agents.ToolInvocation `json:"invocations,omitempty"`
	Stats       agents.AgentStats       `json:"stats"`
	Duration    string                  `json:"duration"`
	Error       string                  `json:"error,omitempty"`
}

// ToolResponse represents the response from tool execution
type ToolResponse struct {
	Success  bool           `json:"success"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
