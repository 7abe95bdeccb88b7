package agents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/policies"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
)

const (
	// DefaultMaxIterations bounds the reasoning loop when Config leaves it unset.
	DefaultMaxIterations = 8
	// MaxAdvisories is how many recent advisories stay in the system prompt.
	MaxAdvisories = 5
)

// Config describes a tool-using agent.
type Config struct {
	Policy        policies.Policy
	Tools         []tools.Tool
	MaxIterations int
	ToolTimeout   time.Duration
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

// Settings are the per-process knobs shared by every sub-agent.
type Settings struct {
	Policies      *policies.Store
	MaxIterations int
	ToolTimeout   time.Duration
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

// Build loads the named policy and creates a ToolAgent with ts in order.
func (s Settings) Build(name string, ts ...tools.Tool) (*ToolAgent, error) {
	store := s.Policies
	if store == nil {
		store = policies.NewStore("")
	}
	policy, err := store.Load(name)
	if err != nil {
		return nil, err
	}
	return NewToolAgent(Config{
		Policy:        policy,
		Tools:         ts,
		MaxIterations: s.MaxIterations,
		ToolTimeout:   s.ToolTimeout,
		Metrics:       s.Metrics,
		Logger:        s.Logger,
	})
}

// ToolAgent runs the reasoning loop: ask the model, execute the tool calls
// it requests in order, feed the results back and repeat until the model
// answers in text or MaxIterations is reached.
type ToolAgent struct {
	policy        policies.Policy
	registry      *tools.Registry
	maxIterations int
	logger        zerolog.Logger

	// keyed by workflow id, oldest evicted first
	advisories *lru.Cache[string, string]
}

var (
	_ Agent          = (*ToolAgent)(nil)
	_ UpdateReceiver = (*ToolAgent)(nil)
)

// NewToolAgent registers the tool list and returns the agent.
func NewToolAgent(cfg Config) (*ToolAgent, error) {
	if cfg.Policy.Name == "" {
		return nil, errors.New("agent policy has no name")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	registry := tools.NewRegistry(tools.Options{
		Owner:   cfg.Policy.Name,
		Timeout: cfg.ToolTimeout,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})
	if err := registry.Register(cfg.Tools...); err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Policy.Name, err)
	}
	advisories, err := lru.New[string, string](MaxAdvisories)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Policy.Name, err)
	}
	return &ToolAgent{
		policy:        cfg.Policy,
		registry:      registry,
		maxIterations: cfg.MaxIterations,
		logger:        cfg.Logger.With().Str("agent", cfg.Policy.Name).Logger(),
		advisories:    advisories,
	}, nil
}

func (a *ToolAgent) Name() string { return a.policy.Name }

func (a *ToolAgent) Description() string { return a.policy.Description }

func (a *ToolAgent) Tools() []tools.Tool { return a.registry.List() }

// Registry exposes the tool registry for direct dispatch.
func (a *ToolAgent) Registry() *tools.Registry { return a.registry }

func (a *ToolAgent) ValidateInput(input *AgentInput) []ValidationError {
	return ValidateRequest(input)
}

// ReceiveUpdate adds an advisory to the instruction used by later runs. A
// second update from the same workflow replaces the first; past
// MaxAdvisories the oldest is dropped.
func (a *ToolAgent) ReceiveUpdate(update AgentUpdate) {
	key := update.Workflow
	if key == "" {
		key = update.Advisory
	}
	evicted := a.advisories.Add(key, update.Advisory)
	a.logger.Info().
		Str("source", update.Source).
		Str("workflow", update.Workflow).
		Bool("evicted", evicted).
		Msg("Advisory received")
}

// SystemPrompt returns the current instruction with advisories, oldest first.
func (a *ToolAgent) SystemPrompt() SystemPrompt {
	return SystemPrompt{Instruction: a.policy.Instruction, Advisories: a.advisories.Values()}
}

// Execute runs the loop. A provider error aborts the run and is returned;
// tool failures are fed back to the model and recorded.
func (a *ToolAgent) Execute(input *AgentInput, rt *Runtime) (*AgentResult, error) {
	start := time.Now()
	result := &AgentResult{Invocations: []ToolInvocation{}, Metadata: map[string]any{}}
	result.Stats.StartedAt = start

	messages := []shared.Message{
		{Role: shared.RoleSystem, Content: a.SystemPrompt().Render()},
		{Role: shared.RoleUser, Content: BuildUserPrompt(input)},
	}
	opts := rt.Options
	opts.Tools = make([]shared.ToolDef, 0, len(a.registry.List()))
	for _, t := range a.registry.List() {
		opts.Tools = append(opts.Tools, tools.ToProviderDef(t))
	}

	finish := func() *AgentResult {
		result.Stats.FinishedAt = time.Now()
		result.Stats.Duration = result.Stats.FinishedAt.Sub(start)
		return result
	}

	for result.Stats.Iterations < a.maxIterations {
		result.Stats.Iterations++
		resp, err := rt.LLM.Complete(rt.Context, &shared.CompletionRequest{Messages: messages, Options: opts})
		if err != nil {
			a.logger.Error().Err(err).Int("iteration", result.Stats.Iterations).Msg("Completion failed")
			return finish(), fmt.Errorf("agent %s: %w", a.Name(), err)
		}
		result.Stats.TokensIn += resp.Usage.PromptTokens
		result.Stats.TokensOut += resp.Usage.CompletionTokens

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			result.Content = resp.Content
			result.Success = true
			return finish(), nil
		}

		messages = append(messages, shared.Message{Role: shared.RoleAssistant, Content: resp.Content, ToolCalls: calls})
		for _, call := range calls {
			inv := a.invoke(rt, call)
			result.Invocations = append(result.Invocations, inv)
			result.Stats.CallsMade++
			messages = append(messages, shared.Message{
				Role: shared.RoleTool,
				ToolInvocation: &shared.ToolInvocation{
					CallID: call.ID,
					Name:   call.Name,
					Result: invocationPayload(inv),
				},
			})
		}
	}

	a.logger.Warn().Int("max_iterations", a.maxIterations).Msg("Reasoning loop stopped at iteration limit")
	result.Content = SummarizeInvocations(result.Invocations)
	result.Success = true
	result.Metadata["stopped"] = "max_iterations"
	return finish(), nil
}

func (a *ToolAgent) invoke(rt *Runtime, call shared.ToolCall) ToolInvocation {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	inv := ToolInvocation{Tool: call.Name, Arguments: args}

	res, err := a.registry.Execute(rt.Context, &tools.ToolInput{Name: call.Name, Data: args, CallID: call.ID})
	if err != nil {
		inv.Error = err.Error()
		return inv
	}
	inv.Success = res.Success
	inv.Output = res.Data
	inv.Error = res.Error
	inv.Duration = res.Stats.ExecutionTime
	return inv
}

func invocationPayload(inv ToolInvocation) map[string]any {
	if inv.Success {
		return map[string]any{"success": true, "data": inv.Output}
	}
	return map[string]any{"success": false, "error": inv.Error}
}

// SummarizeInvocations describes tool outcomes when the model gave no text.
func SummarizeInvocations(invs []ToolInvocation) string {
	if len(invs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(invs))
	for _, inv := range invs {
		status := "succeeded"
		if !inv.Success {
			status = "failed: " + inv.Error
		}
		lines = append(lines, fmt.Sprintf("- %s %s", inv.Tool, status))
	}
	return "Tool results:\n" + strings.Join(lines, "\n")
}
