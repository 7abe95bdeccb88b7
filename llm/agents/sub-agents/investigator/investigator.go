// Package investigator is the forensic reconstruction agent.
package investigator

import (
	"context"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools/retriever"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/investigation"
)

const Name = "investigator_agent"

func New(svc *investigation.Service, search retrieval.Searcher, s agents.Settings) (*agents.ToolAgent, error) {
	return s.Build(Name, TraceTool(svc), retriever.New(search))
}

// TraceTool wraps Investigate.
func TraceTool(svc *investigation.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"limit": map[string]any{
			"type":        "integer",
			"description": "Number of most recent log rows to reconstruct from",
			"minimum":     1,
			"default":     1000,
		},
	})
	return tools.NewFunc("trace",
		"Reconstruct the incident timeline, attack path, compromised resources and exfiltration risk.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			result, err := svc.Investigate(ctx, tools.Int(args, "limit", 1000))
			if err != nil {
				return nil, err
			}
			return models.ToWire(result)
		})
}
