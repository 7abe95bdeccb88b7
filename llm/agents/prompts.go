package agents

import (
	"fmt"
	"strings"
)

// SystemPrompt is an agent instruction plus the advisories broadcast to it.
type SystemPrompt struct {
	Instruction string
	Advisories  []string
}

// Render returns the prompt text sent as the system message.
func (p SystemPrompt) Render() string {
	if len(p.Advisories) == 0 {
		return p.Instruction
	}
	var b strings.Builder
	b.WriteString(p.Instruction)
	b.WriteString("\n\nActive advisories:\n")
	for _, a := range p.Advisories {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildUserPrompt renders the request followed by the outputs of earlier
// workflow steps.
func BuildUserPrompt(input *AgentInput) string {
	if len(input.Context) == 0 {
		return input.Request
	}
	var b strings.Builder
	b.WriteString(input.Request)
	b.WriteString("\n\nContext from previous steps:")
	for _, step := range input.Context {
		fmt.Fprintf(&b, "\n\n## %s\n%s", step.Agent, strings.TrimSpace(step.Content))
	}
	return b.String()
}
