// Package intelligence is the threat intelligence agent: feed ingestion,
// model training and the ingestion pipeline.
package intelligence

import (
	"context"
	"sort"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/pipeline"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools/retriever"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/ingestion"
	intelsvc "github.com/Fangmbeng/CyberGuard-AI-Agent/services/intelligence"
)

const Name = "intelligence_agent"

func New(intel *intelsvc.Service, ingest *ingestion.Service, search retrieval.Searcher, s agents.Settings) (*agents.ToolAgent, error) {
	return s.Build(Name, IngestTool(intel), TrainTool(intel), PipelineTool(ingest), retriever.New(search))
}

// IngestTool aggregates every feed and persists the items. Failing feeds are
// listed under feed_errors.
func IngestTool(svc *intelsvc.Service) *tools.Func {
	return tools.NewFunc("ingest_feeds", "Fetch the latest CVE and threat chatter feeds and store them.", nil,
		func(ctx context.Context, _ map[string]any) (any, error) {
			agg := svc.AggregateFeeds(ctx)
			items, err := models.ToWireList(agg.Items)
			if err != nil {
				return nil, err
			}
			out := map[string]any{"items": items, "count": len(items)}
			if len(agg.FeedErrors) > 0 {
				names := make([]string, 0, len(agg.FeedErrors))
				for name := range agg.FeedErrors {
					names = append(names, name)
				}
				sort.Strings(names)
				errs := make(map[string]any, len(names))
				for _, name := range names {
					errs[name] = agg.FeedErrors[name].Error()
				}
				out["feed_errors"] = errs
			}
			if agg.PersistErr != nil {
				out["persist_error"] = agg.PersistErr.Error()
			}
			return out, nil
		})
}

func TrainTool(svc *intelsvc.Service) *tools.Func {
	return tools.NewFunc("train_model", "Start a training job for the threat prediction model.", nil,
		func(ctx context.Context, _ map[string]any) (any, error) {
			msg, err := svc.TrainPredictionModel(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"message": msg}, nil
		})
}

func PipelineTool(svc *ingestion.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"cron_schedule": map[string]any{"type": "string", "description": "Five-field cron expression; run once when empty"},
		"pipeline_name": map[string]any{"type": "string", "default": pipeline.DefaultName},
	})
	return tools.NewFunc("run_ingestion_pipeline", "Submit or schedule the document ingestion pipeline.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			msg, err := svc.SubmitPipeline(ctx,
				tools.String(args, "cron_schedule", ""),
				tools.String(args, "pipeline_name", pipeline.DefaultName))
			if err != nil {
				return nil, err
			}
			return map[string]any{"message": msg}, nil
		})
}
