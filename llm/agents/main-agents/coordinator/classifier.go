package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

// Class is a workflow class.
type Class string

const (
	ClassIncidentResponse    Class = "incident_response"
	ClassProactivePrevention Class = "proactive_prevention"
	ClassZeroDay             Class = "zero_day"
	ClassCustom              Class = "custom"
)

// Classes lists every class in a stable order.
var Classes = []Class{ClassIncidentResponse, ClassProactivePrevention, ClassZeroDay, ClassCustom}

// ParseClass normalizes a label such as "Zero-Day" or "`incident_response`".
func ParseClass(label string) (Class, bool) {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.Trim(s, "`\"'*.:# \n")
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for _, c := range Classes {
		if s == string(c) {
			return c, true
		}
	}
	return "", false
}

// Classifier picks the workflow class for a request.
type Classifier interface {
	Classify(ctx context.Context, request string) (Class, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, request string) (Class, error)

func (f ClassifierFunc) Classify(ctx context.Context, request string) (Class, error) {
	return f(ctx, request)
}

const defaultClassifierPrompt = "Classify the security request as incident_response, proactive_prevention, zero_day or custom. Answer with the class name only."

// LLMClassifier asks the model for a single label. Anything it cannot parse
// is treated as custom.
type LLMClassifier struct {
	llm    shared.LLMProvider
	opts   shared.CompletionOptions
	prompt string
	logger zerolog.Logger
}

func NewLLMClassifier(llm shared.LLMProvider, opts shared.CompletionOptions, prompt string, log zerolog.Logger) *LLMClassifier {
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultClassifierPrompt
	}
	opts.Tools = nil
	opts.Temperature = 0
	if opts.MaxTokens == 0 || opts.MaxTokens > 16 {
		opts.MaxTokens = 16
	}
	return &LLMClassifier{llm: llm, opts: opts, prompt: prompt, logger: log}
}

func (c *LLMClassifier) Classify(ctx context.Context, request string) (Class, error) {
	resp, err := c.llm.Complete(ctx, &shared.CompletionRequest{
		Messages: []shared.Message{
			{Role: shared.RoleSystem, Content: c.prompt},
			{Role: shared.RoleUser, Content: request},
		},
		Options: c.opts,
	})
	if err != nil {
		return "", fmt.Errorf("classify request: %w", err)
	}
	class, ok := ParseClass(resp.Content)
	if !ok {
		c.logger.Warn().Str("label", resp.Content).Msg("Unrecognized workflow class, using custom")
		return ClassCustom, nil
	}
	return class, nil
}
