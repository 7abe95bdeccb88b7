package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
)

type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	order  []string
	llm    shared.LLMProvider
	opts   shared.CompletionOptions
	logger zerolog.Logger
}

func NewAgentRegistry(llm shared.LLMProvider, opts shared.CompletionOptions, log zerolog.Logger) *AgentRegistry {
	return &AgentRegistry{
		agents: make(map[string]Agent),
		llm:    llm,
		opts:   opts,
		logger: log,
	}
}

func (r *AgentRegistry) Register(agent Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[agent.Name()]; exists {
		return fmt.Errorf("agent already registered: %s", agent.Name())
	}
	r.agents[agent.Name()] = agent
	r.order = append(r.order, agent.Name())
	return nil
}

func (r *AgentRegistry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, exists := r.agents[name]
	if !exists {
		return nil, &models.NotFoundError{Kind: "agent", ID: name}
	}
	return agent, nil
}

// List returns agents in registration order.
func (r *AgentRegistry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agents := make([]Agent, 0, len(r.order))
	for _, name := range r.order {
		agents = append(agents, r.agents[name])
	}
	return agents
}

// Runtime returns a runtime bound to ctx.
func (r *AgentRegistry) Runtime(ctx context.Context) *Runtime {
	log := r.logger
	return &Runtime{
		Context: ctx,
		LLM:     r.llm,
		Options: r.opts,
		Agents:  r,
		Logger:  &log,
	}
}

// Execute validates the input and runs the named agent.
func (r *AgentRegistry) Execute(ctx context.Context, name string, input *AgentInput) (*AgentResult, error) {
	agent, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if errs := agent.ValidateInput(input); len(errs) > 0 {
		return nil, JoinValidation(errs)
	}
	return agent.Execute(input, r.Runtime(ctx))
}

// Broadcast delivers update to every agent that accepts updates and returns
// how many received it.
func (r *AgentRegistry) Broadcast(update AgentUpdate) int {
	n := 0
	for _, agent := range r.List() {
		if recv, ok := agent.(UpdateReceiver); ok {
			recv.ReceiveUpdate(update)
			n++
		}
	}
	return n
}

// Describe returns the public view of an agent.
func Describe(agent Agent) api.AgentDescriptor {
	defs := make([]api.ToolDefinition, 0, len(agent.Tools()))
	for _, t := range agent.Tools() {
		defs = append(defs, *t.Definition())
	}
	return api.AgentDescriptor{Name: agent.Name(), Description: agent.Description(), Tools: defs}
}

type Agent interface {
	Name() string
	Description() string
	// Tools is the static, ordered tool list.
	Tools() []tools.Tool
	ValidateInput(input *AgentInput) []ValidationError
	Execute(input *AgentInput, rt *Runtime) (*AgentResult, error)
}

// UpdateReceiver is implemented by agents that accept broadcast advisories.
type UpdateReceiver interface {
	ReceiveUpdate(update AgentUpdate)
}

// AgentUpdate is an advisory broadcast to every agent, appended to their
// instructions for later runs.
type AgentUpdate struct {
	Source   string    `json:"source"`
	Workflow string    `json:"workflow,omitempty"`
	Advisory string    `json:"advisory"`
	IssuedAt time.Time `json:"issued_at"`
}

type AgentInput struct {
	Request string `json:"request"`
	// Context carries the outputs of earlier workflow steps, in order.
	Context []StepOutput   `json:"context,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Session SessionInfo    `json:"session"`
}

// StepOutput is the narrative produced by one earlier step.
type StepOutput struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

type AgentResult struct {
	Content     string           `json:"content"`
	Success     bool             `json:"success"`
	Invocations []ToolInvocation `json:"invocations"`
	Stats       AgentStats       `json:"stats"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// ToolInvocation records one tool call made during an agent run.
type ToolInvocation struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Success   bool           `json:"success"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

type AgentStats struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	TokensIn   int           `json:"tokens_in"`
	TokensOut  int           `json:"tokens_out"`
	CallsMade  int           `json:"calls_made"`
	Iterations int           `json:"iterations"`
}

type SessionInfo struct {
	SessionID string `json:"session_id,omitempty"`
	Workflow  string `json:"workflow,omitempty"`
}

type Runtime struct {
	Context context.Context
	LLM     shared.LLMProvider
	Options shared.CompletionOptions
	Agents  *AgentRegistry
	Logger  *zerolog.Logger
}

type ValidationError = models.ValidationError

// ValidateRequest is the input check shared by every agent.
func ValidateRequest(input *AgentInput) []ValidationError {
	if input == nil {
		return []ValidationError{*models.NewValidationError("input", "is required", nil)}
	}
	if strings.TrimSpace(input.Request) == "" {
		return []ValidationError{*models.NewValidationError("request", "is required", input.Request)}
	}
	return nil
}

// JoinValidation folds validation errors into one error.
func JoinValidation(errs []ValidationError) error {
	out := make([]error, 0, len(errs))
	for i := range errs {
		out = append(out, &errs[i])
	}
	return errors.Join(out...)
}
