// Package coordinator is the root agent. It classifies a request, runs the
// matching fixed sequence of specialized agents and assembles their outputs
// into one narrative. Requests that fit no workflow are handled by a
// reasoning loop that can delegate to any agent.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/policies"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/containment"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/detector"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/hunter"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/intelligence"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/investigator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/remediator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/reporter"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools/retriever"
)

const (
	Name = "coordinator"

	// DefaultDelegateTimeout bounds one delegated agent run in custom mode.
	DefaultDelegateTimeout = 10 * time.Minute

	maxAdvisoryContext = 1000
)

// Sequences maps each fixed workflow class to its agents, in order.
var Sequences = map[Class][]string{
	ClassIncidentResponse: {
		detector.Name, hunter.Name, investigator.Name, containment.Name, remediator.Name, reporter.Name,
	},
	ClassProactivePrevention: {
		intelligence.Name, hunter.Name, investigator.Name, remediator.Name,
	},
	ClassZeroDay: {
		detector.Name, hunter.Name, investigator.Name, intelligence.Name,
	},
}

// StepStatus is the outcome of one workflow step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Request is one workflow invocation. A non-empty Class skips classification.
type Request struct {
	Prompt    string `json:"prompt"`
	Class     Class  `json:"class,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Step records one agent run.
type Step struct {
	Agent       string                  `json:"agent"`
	Status      StepStatus              `json:"status"`
	Content     string                  `json:"content,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Retrieved   bool                    `json:"retrieved,omitempty"`
	Invocations []agents.ToolInvocation `json:"invocations,omitempty"`
	Duration    time.Duration           `json:"duration"`
}

// Broadcast describes the zero-day advisory fan-out.
type Broadcast struct {
	Update       agents.AgentUpdate `json:"update"`
	Delivered    int                `json:"delivered"`
	Published    bool               `json:"published"`
	PublishError string             `json:"publish_error,omitempty"`
}

// WorkflowResult is returned for every run. When a step fails the run halts,
// Completed is false and Steps ends with the failed step.
type WorkflowResult struct {
	ID         string     `json:"id"`
	Class      Class      `json:"class"`
	Prompt     string     `json:"prompt"`
	Completed  bool       `json:"completed"`
	Steps      []Step     `json:"steps"`
	Broadcast  *Broadcast `json:"broadcast,omitempty"`
	Narrative  string     `json:"narrative"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// CompletedSteps returns the agents that finished, in order.
func (r *WorkflowResult) CompletedSteps() []string {
	return r.stepsWith(StepCompleted)
}

// FailedSteps returns the agents that failed.
func (r *WorkflowResult) FailedSteps() []string {
	return r.stepsWith(StepFailed)
}

func (r *WorkflowResult) stepsWith(status StepStatus) []string {
	out := []string{}
	for _, s := range r.Steps {
		if s.Status == status {
			out = append(out, s.Agent)
		}
	}
	return out
}

// Config wires the coordinator.
type Config struct {
	Agents     *agents.AgentRegistry
	Classifier Classifier
	Search     retrieval.Searcher
	// Publisher is optional; zero-day advisories are also published on it.
	Publisher       messaging.Publisher
	Policy          policies.Policy
	Settings        agents.Settings
	DelegateTimeout time.Duration
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
}

type Coordinator struct {
	agents          *agents.AgentRegistry
	classifier      Classifier
	docs            *retriever.Tool
	publisher       messaging.Publisher
	policy          policies.Policy
	settings        agents.Settings
	delegateTimeout time.Duration
	metrics         *metrics.Metrics
	now             func() time.Time
	newID           func() string
	logger          zerolog.Logger
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Agents == nil {
		return nil, fmt.Errorf("coordinator: agent registry is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("coordinator: classifier is required")
	}
	if cfg.Search == nil {
		return nil, fmt.Errorf("coordinator: document search is required")
	}
	if cfg.Policy.Name == "" {
		cfg.Policy = policies.Policy{Name: Name, Instruction: "Coordinate the available agents to answer the request."}
	}
	if cfg.DelegateTimeout <= 0 {
		cfg.DelegateTimeout = DefaultDelegateTimeout
	}
	return &Coordinator{
		agents:          cfg.Agents,
		classifier:      cfg.Classifier,
		docs:            retriever.New(cfg.Search),
		publisher:       cfg.Publisher,
		policy:          cfg.Policy,
		settings:        cfg.Settings,
		delegateTimeout: cfg.DelegateTimeout,
		metrics:         cfg.Metrics,
		now:             time.Now,
		newID:           uuid.NewString,
		logger:          cfg.Logger.With().Str("agent", Name).Logger(),
	}, nil
}

// Run executes one workflow. Errors are returned only for an invalid request
// or a failed classification; step failures are reported in the result.
func (c *Coordinator) Run(ctx context.Context, req Request) (*WorkflowResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, models.NewValidationError("prompt", "is required", req.Prompt)
	}

	class := req.Class
	if class != "" {
		parsed, ok := ParseClass(string(class))
		if !ok {
			return nil, models.NewValidationError("class", "must be one of incident_response, proactive_prevention, zero_day, custom", req.Class)
		}
		class = parsed
	} else {
		var err error
		if class, err = c.classifier.Classify(ctx, prompt); err != nil {
			return nil, err
		}
		if _, ok := ParseClass(string(class)); !ok {
			class = ClassCustom
		}
	}

	result := &WorkflowResult{
		ID:        req.SessionID,
		Class:     class,
		Prompt:    prompt,
		Steps:     []Step{},
		StartedAt: c.now().UTC(),
	}
	if result.ID == "" {
		result.ID = c.newID()
	}
	log := c.logger.With().Str("workflow_id", result.ID).Str("class", string(class)).Logger()
	log.Info().Msg("Workflow started")

	if class == ClassCustom {
		c.runCustom(ctx, result, log)
	} else {
		c.runSequence(ctx, result, Sequences[class], log)
		if result.Completed && class == ClassZeroDay {
			result.Broadcast = c.broadcast(ctx, result, log)
		}
	}

	result.FinishedAt = c.now().UTC()
	result.Narrative = Narrative(result)
	c.metrics.ObserveWorkflow(string(class), result.Completed)
	log.Info().
		Bool("completed", result.Completed).
		Strs("completed_steps", result.CompletedSteps()).
		Strs("failed_steps", result.FailedSteps()).
		Msg("Workflow finished")
	return result, nil
}

func (c *Coordinator) runSequence(ctx context.Context, result *WorkflowResult, sequence []string, log zerolog.Logger) {
	var carried []agents.StepOutput
	for _, name := range sequence {
		input := &agents.AgentInput{
			Request: result.Prompt,
			Context: append([]agents.StepOutput(nil), carried...),
			Session: agents.SessionInfo{SessionID: result.ID, Workflow: string(result.Class)},
		}
		step := c.runStep(ctx, name, input, string(result.Class))
		result.Steps = append(result.Steps, step)
		if step.Status == StepFailed {
			log.Error().Str("step", name).Str("error", step.Error).Msg("Workflow halted")
			return
		}
		carried = append(carried, agents.StepOutput{Agent: name, Content: step.Content})
	}
	result.Completed = true
}

// runStep executes one agent. An empty narrative is replaced by a document
// lookup on the request.
func (c *Coordinator) runStep(ctx context.Context, name string, input *agents.AgentInput, workflow string) Step {
	start := c.now()
	step := Step{Agent: name}

	res, err := c.agents.Execute(ctx, name, input)
	if res != nil {
		step.Invocations = res.Invocations
	}
	step.Duration = c.now().Sub(start)
	if err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
		c.metrics.ObserveStep(workflow, name, string(StepFailed))
		return step
	}

	step.Status = StepCompleted
	step.Content = strings.TrimSpace(res.Content)
	if step.Content == "" {
		step.Content = c.docs.Search(ctx, fmt.Sprintf("%s: %s", name, input.Request))
		step.Retrieved = true
	}
	c.metrics.ObserveStep(workflow, name, string(StepCompleted))
	return step
}

// broadcast hands the zero-day advisory to every agent and publishes it.
func (c *Coordinator) broadcast(ctx context.Context, result *WorkflowResult, log zerolog.Logger) *Broadcast {
	intel := ""
	for _, s := range result.Steps {
		if s.Agent == intelligence.Name {
			intel = s.Content
		}
	}
	intel = models.Truncate(intel, maxAdvisoryContext)
	advisory := fmt.Sprintf("Zero-day protection in effect for: %s", result.Prompt)
	if intel != "" {
		advisory += "\nIntelligence summary: " + intel
	}

	b := &Broadcast{Update: agents.AgentUpdate{
		Source:   Name,
		Workflow: result.ID,
		Advisory: advisory,
		IssuedAt: c.now().UTC(),
	}}
	b.Delivered = c.agents.Broadcast(b.Update)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, messaging.SubjectAgentUpdate, b.Update); err != nil {
			log.Warn().Err(err).Msg("Failed to publish agent update")
			c.metrics.IncrementPublishErrors()
			b.PublishError = err.Error()
		} else {
			b.Published = true
		}
	}
	log.Info().Int("delivered", b.Delivered).Bool("published", b.Published).Msg("Zero-day advisory broadcast")
	return b
}

// runCustom lets the coordinator's own reasoning loop delegate to agents.
func (c *Coordinator) runCustom(ctx context.Context, result *WorkflowResult, log zerolog.Logger) {
	var mu sync.Mutex
	record := func(s Step) {
		mu.Lock()
		defer mu.Unlock()
		result.Steps = append(result.Steps, s)
	}

	var delegates []tools.Tool
	for _, agent := range c.agents.List() {
		delegates = append(delegates, c.delegateTool(agent, result, record))
	}
	delegates = append(delegates, c.docs)

	settings := c.settings
	settings.ToolTimeout = c.delegateTimeout
	loop, err := agents.NewToolAgent(agents.Config{
		Policy:        c.policy,
		Tools:         delegates,
		MaxIterations: settings.MaxIterations,
		ToolTimeout:   settings.ToolTimeout,
		Metrics:       settings.Metrics,
		Logger:        settings.Logger,
	})
	if err != nil {
		record(Step{Agent: Name, Status: StepFailed, Error: err.Error()})
		return
	}

	start := c.now()
	res, err := loop.Execute(&agents.AgentInput{
		Request: result.Prompt,
		Session: agents.SessionInfo{SessionID: result.ID, Workflow: string(ClassCustom)},
	}, c.agents.Runtime(ctx))

	step := Step{Agent: Name, Duration: c.now().Sub(start)}
	if res != nil {
		step.Invocations = res.Invocations
	}
	if err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
		c.metrics.ObserveStep(string(ClassCustom), Name, string(StepFailed))
		log.Error().Err(err).Msg("Coordinator loop failed")
		record(step)
		return
	}
	step.Status = StepCompleted
	step.Content = strings.TrimSpace(res.Content)
	c.metrics.ObserveStep(string(ClassCustom), Name, string(StepCompleted))
	record(step)
	result.Completed = true
}

// delegateTool exposes an agent as delegate_<name>. A delegated run that
// fails is reported to the coordinator loop as a failed tool call.
func (c *Coordinator) delegateTool(agent agents.Agent, result *WorkflowResult, record func(Step)) tools.Tool {
	name := agent.Name()
	schema := tools.Object(map[string]any{
		"request": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "What the agent should do, with any context it needs",
		},
	}, "request")
	return tools.NewFunc("delegate_"+name, agent.Description(), schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			input := &agents.AgentInput{
				Request: tools.String(args, "request", ""),
				Session: agents.SessionInfo{SessionID: result.ID, Workflow: string(ClassCustom)},
			}
			step := c.runStep(ctx, name, input, string(ClassCustom))
			record(step)
			if step.Status == StepFailed {
				return nil, fmt.Errorf("%s failed: %s", name, step.Error)
			}
			return map[string]any{"agent": name, "content": step.Content}, nil
		})
}

// Narrative renders one section per executed agent.
func Narrative(result *WorkflowResult) string {
	sections := make([]string, 0, len(result.Steps)+1)
	for _, s := range result.Steps {
		body := s.Content
		if s.Status == StepFailed {
			body = "Step failed: " + s.Error
		}
		sections = append(sections, fmt.Sprintf("## %s\n%s", s.Agent, body))
	}
	if b := result.Broadcast; b != nil {
		sections = append(sections, fmt.Sprintf("Advisory delivered to %d agents.", b.Delivered))
	}
	if !result.Completed {
		sections = append(sections, "Workflow halted before completion.")
	}
	return strings.Join(sections, "\n\n")
}
