// Package reporter is the reporting agent.
package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools/retriever"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/reporting"
)

const Name = "reporter_agent"

func New(svc *reporting.Service, search retrieval.Searcher, s agents.Settings) (*agents.ToolAgent, error) {
	return s.Build(Name, ReportTool(svc), SaveTool(svc), DownloadURLTool(svc), retriever.New(search))
}

func ReportTool(svc *reporting.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"sections": map[string]any{
			"type":        "array",
			"minItems":    1,
			"items":       map[string]any{"type": "string", "minLength": 1},
			"description": "Section names in order, e.g. Executive Summary, Threat Intelligence, Findings, Recommendations",
		},
	}, "sections")
	return tools.NewFunc("report", "Build an incident report from the named sections.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			report, err := svc.Report(ctx, tools.Strings(args, "sections"))
			if err != nil {
				return nil, err
			}
			return models.ToWire(report)
		})
}

// SaveTool renders and stores a report. A metadata failure after upload is
// reported alongside the uri.
func SaveTool(svc *reporting.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"report_id": map[string]any{"type": "string", "minLength": 1},
	}, "report_id")
	return tools.NewFunc("save_report", "Render a report to PDF and store it in the reports bucket.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			id := tools.String(args, "report_id", "")
			uri, err := svc.SaveReport(ctx, id)
			if uri == "" {
				return nil, err
			}
			out := map[string]any{"report_id": id, "uri": uri}
			var ext *models.ExternalCallError
			if errors.As(err, &ext) {
				out["metadata_error"] = ext.Error()
			}
			return out, nil
		})
}

func DownloadURLTool(svc *reporting.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"report_id": map[string]any{"type": "string", "minLength": 1},
		"expires_in_seconds": map[string]any{
			"type":        "integer",
			"minimum":     1,
			"maximum":     7 * 24 * 3600,
			"description": "Link lifetime; the configured default when omitted",
		},
	}, "report_id")
	return tools.NewFunc("get_download_url", "Create a signed, time-limited download link for a saved report.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			id := tools.String(args, "report_id", "")
			ttl := time.Duration(tools.Int(args, "expires_in_seconds", 0)) * time.Second
			url, err := svc.GetDownloadURL(ctx, id, ttl)
			if err != nil {
				return nil, err
			}
			return map[string]any{"report_id": id, "url": url}, nil
		})
}
