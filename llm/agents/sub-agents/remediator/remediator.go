// Package remediator is the remediation agent: isolation, patching and
// file recovery.
package remediator

import (
	"context"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools/retriever"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/remediation"
)

const Name = "remediator_agent"

func New(svc *remediation.Service, search retrieval.Searcher, s agents.Settings) (*agents.ToolAgent, error) {
	return s.Build(Name, IsolateTool(svc), PatchTool(svc), RecoverTool(svc), retriever.New(search))
}

func IsolateTool(svc *remediation.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"instance_name": map[string]any{"type": "string", "minLength": 1},
		"zone":          map[string]any{"type": "string"},
	}, "instance_name")
	return tools.NewFunc("isolate_vm", "Stop a compromised VM before remediation.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			return wire(svc.IsolateVM(ctx, tools.String(args, "instance_name", ""), tools.String(args, "zone", "")))
		})
}

func PatchTool(svc *remediation.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"instance_id":    map[string]any{"type": "string", "minLength": 1},
		"patch_job_name": map[string]any{"type": "string", "description": "Name for the patch job; generated when empty"},
	}, "instance_id")
	return tools.NewFunc("patch_vm", "Trigger a patch job for an instance.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			return wire(svc.PatchVM(ctx, tools.String(args, "instance_id", ""), tools.String(args, "patch_job_name", "")))
		})
}

func RecoverTool(svc *remediation.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"file_path": map[string]any{"type": "string", "minLength": 1, "description": "Path of the file relative to the backup root"},
	}, "file_path")
	return tools.NewFunc("recover_file", "Restore a file from the backup bucket.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			return wire(svc.RecoverFile(ctx, tools.String(args, "file_path", "")))
		})
}

func wire(rec models.RemediationAction, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return models.ToWire(rec)
}
