// Package detector is the detection agent: anomaly scans over recent logs.
package detector

import (
	"context"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools/retriever"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/detection"
)

const Name = "detection_agent"

// New builds the detection agent over svc.
func New(svc *detection.Service, search retrieval.Searcher, s agents.Settings) (*agents.ToolAgent, error) {
	return s.Build(Name, DetectTool(svc), retriever.New(search))
}

// DetectTool wraps DetectAnomalies.
func DetectTool(svc *detection.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"limit": map[string]any{
			"type":        "integer",
			"description": "Number of most recent log rows to scan",
			"minimum":     1,
			"default":     1000,
		},
	})
	return tools.NewFunc("detect_anomalies",
		"Scan recent logs for outbound traffic to public addresses and record each finding as an anomaly.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			batch, err := svc.DetectAnomalies(ctx, tools.Int(args, "limit", 1000))
			if err != nil {
				return nil, err
			}
			wire, err := models.ToWireList(batch.Anomalies)
			if err != nil {
				return nil, err
			}
			out := map[string]any{"anomalies": wire, "count": len(wire)}
			if batch.PersistErr != nil {
				out["persist_error"] = batch.PersistErr.Error()
			}
			return out, nil
		})
}
