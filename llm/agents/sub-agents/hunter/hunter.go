// Package hunter is the threat hunting agent.
package hunter

import (
	"context"
	"strings"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/hunting"
)

const Name = "threat_hunter_agent"

// New builds the hunting agent. It reaches retrieval through its own
// retrieve_threat_intel tool rather than retrieve_docs.
func New(svc *hunting.Service, search retrieval.Searcher, s agents.Settings) (*agents.ToolAgent, error) {
	return s.Build(Name, HuntTool(svc), ThreatIntelTool(search), HistoricalIntelTool(svc))
}

func HuntTool(svc *hunting.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"limit": map[string]any{
			"type":        "integer",
			"description": "Number of log rows to scan",
			"minimum":     1,
			"default":     hunting.DefaultLimit,
		},
		"filter_expression": map[string]any{
			"type":        "string",
			"description": "Simple WHERE clause over ip, timestamp and message",
			"default":     "TRUE",
		},
	})
	return tools.NewFunc("hunt",
		"Search logs with a structured filter and group suspicious external sources into threats.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			res, err := svc.DetectThreats(ctx,
				tools.Int(args, "limit", hunting.DefaultLimit),
				tools.String(args, "filter_expression", "TRUE"))
			if err != nil {
				return nil, err
			}
			threats, err := models.ToWireList(res.Threats)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"threats":        threats,
				"rows_scanned":   len(res.Rows),
				"predicate":      res.Filter.Predicate,
				"filter_policy":  string(res.Filter.Policy),
				"unknown_fields": res.Filter.UnknownFields,
			}, nil
		})
}

// ThreatIntelTool searches the document corpus, optionally scoped to a source.
func ThreatIntelTool(search retrieval.Searcher) *tools.Func {
	schema := tools.Object(map[string]any{
		"query":  map[string]any{"type": "string", "minLength": 1},
		"source": map[string]any{"type": "string", "description": "Feed or vendor to scope the search to"},
	}, "query")
	return tools.NewFunc("retrieve_threat_intel",
		"Look up external threat intelligence, IOCs and exploit patterns.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			query := tools.String(args, "query", "")
			if source := strings.TrimSpace(tools.String(args, "source", "")); source != "" {
				query += " source:" + source
			}
			return map[string]any{"query": query, "context": search.RetrieveDocs(ctx, query)}, nil
		})
}

// HistoricalIntelTool returns persisted CVEs and chatter.
func HistoricalIntelTool(svc *hunting.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"limit": map[string]any{
			"type":    "integer",
			"minimum": 1,
			"default": hunting.DefaultIntelLimit,
		},
		"severity": map[string]any{"type": "string", "description": "Only return items with this severity"},
	})
	return tools.NewFunc("retrieve_historical_intel",
		"Pull historical CVEs and threat chatter from the warehouse.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			items, err := svc.HistoricalIntel(ctx,
				tools.Int(args, "limit", hunting.DefaultIntelLimit),
				tools.String(args, "severity", ""))
			if err != nil {
				return nil, err
			}
			wire, err := models.ToWireList(items)
			if err != nil {
				return nil, err
			}
			return map[string]any{"intel": wire, "count": len(wire)}, nil
		})
}
