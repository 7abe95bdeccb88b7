// Package containment is the containment agent: VM isolation, account
// lockdown and policy enforcement.
package containment

import (
	"context"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools/retriever"
	containmentsvc "github.com/Fangmbeng/CyberGuard-AI-Agent/services/containment"
)

const Name = "containment_agent"

func New(svc *containmentsvc.Service, search retrieval.Searcher, s agents.Settings) (*agents.ToolAgent, error) {
	return s.Build(Name, IsolateTool(svc), LockAccountTool(svc), ApplyPolicyTool(svc), retriever.New(search))
}

func IsolateTool(svc *containmentsvc.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"resource_id": map[string]any{"type": "string", "minLength": 1, "description": "Instance name"},
		"zone":        map[string]any{"type": "string", "description": "Zone of the instance; the default zone when empty"},
	}, "resource_id")
	return tools.NewFunc("isolate_vm", "Stop a VM instance to cut it off from the network.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			rec, err := svc.PerformVMIsolation(ctx, tools.String(args, "resource_id", ""), tools.String(args, "zone", ""))
			if err != nil {
				return nil, err
			}
			return models.ToWire(rec)
		})
}

func LockAccountTool(svc *containmentsvc.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"account_id": map[string]any{"type": "string", "minLength": 1, "description": "Account email or id"},
	}, "account_id")
	return tools.NewFunc("lock_account", "Disable a user or service account.", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			rec, err := svc.LockUserAccount(ctx, tools.String(args, "account_id", ""))
			if err != nil {
				return nil, err
			}
			return models.ToWire(rec)
		})
}

// ApplyPolicyTool runs every action of a containment policy against every
// target.
func ApplyPolicyTool(svc *containmentsvc.Service) *tools.Func {
	schema := tools.Object(map[string]any{
		"policy": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":          map[string]any{"type": "string", "minLength": 1},
				"name":        map[string]any{"type": "string", "minLength": 1},
				"description": map[string]any{"type": "string"},
				"target_resources": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items":    map[string]any{"type": "string", "minLength": 1},
				},
				"actions": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type": "string",
						"enum": []any{models.ActionIsolateVM, models.ActionDisableAccount, models.ActionTagVM},
					},
				},
				"justification": map[string]any{"type": "string"},
			},
			"required": []any{"id", "name", "target_resources", "actions"},
		},
	}, "policy")
	return tools.NewFunc("apply_policy",
		"Apply a containment policy: each action runs against each target resource.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			var policy models.ContainmentPolicy
			if err := tools.Decode(args, "policy", &policy); err != nil {
				return nil, err
			}
			recs, err := svc.ApplyPolicy(ctx, policy)
			if err != nil {
				return nil, err
			}
			wire, err := models.ToWireList(recs)
			if err != nil {
				return nil, err
			}
			return map[string]any{"policy_id": policy.ID, "actions": wire}, nil
		})
}
