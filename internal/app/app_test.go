package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane/controlplanetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage/storagetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse/warehousetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/main-agents/coordinator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/containment"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/detector"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/hunter"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/investigator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/remediator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/reporter"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/test"
)

type fixture struct {
	app  *App
	llm  *test.FakeProvider
	cp   *controlplanetest.Fake
	wh   *warehousetest.Fake
	jobs *messaging.Recorder
}

func hasTool(req *shared.CompletionRequest, name string) bool {
	for _, t := range req.Options.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// scriptedModel classifies every request as class and makes each agent call
// its primary tool once before answering.
func scriptedModel(class string) test.Responder {
	return func(req *shared.CompletionRequest) (*shared.CompletionResponse, error) {
		if len(req.Options.Tools) == 0 {
			return test.Text(class), nil
		}
		last := req.Messages[len(req.Messages)-1]
		if last.Role == shared.RoleTool {
			return test.Text(fmt.Sprintf("%s finished", last.ToolInvocation.Name)), nil
		}

		var call shared.ToolCall
		switch {
		case hasTool(req, "detect_anomalies"):
			call = shared.ToolCall{Name: "detect_anomalies"}
		case hasTool(req, "hunt"):
			call = shared.ToolCall{Name: "hunt", Arguments: map[string]any{"filter_expression": "event_type = 'authentication'"}}
		case hasTool(req, "trace"):
			call = shared.ToolCall{Name: "trace"}
		case hasTool(req, "lock_account"):
			call = shared.ToolCall{Name: "isolate_vm", Arguments: map[string]any{"resource_id": "web-frontend-1"}}
		case hasTool(req, "patch_vm"):
			call = shared.ToolCall{Name: "patch_vm", Arguments: map[string]any{"instance_id": "web-frontend-1"}}
		case hasTool(req, "report"):
			call = shared.ToolCall{Name: "report", Arguments: map[string]any{"sections": []any{"Findings", "Bogus"}}}
		default:
			return test.Text("nothing to do"), nil
		}
		return test.ToolCalls(call), nil
	}
}

func newFixture(t *testing.T, class string) *fixture {
	t.Helper()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f := &fixture{
		llm: test.NewFakeProvider(),
		cp:  controlplanetest.New(),
		wh: &warehousetest.Fake{Logs: []warehouse.Row{
			{"ip": "45.33.32.156", "timestamp": at, "message": "authentication failure for admin", "user": "admin"},
			{"ip": "10.0.0.7", "timestamp": at, "message": "health check"},
		}},
		jobs: &messaging.Recorder{},
	}
	f.llm.SetResponder(scriptedModel(class))

	signer, err := storage.NewSigner([]byte("test-secret"), "http://localhost:8080")
	require.NoError(t, err)

	f.app, err = Build(config.DefaultConfig(), Collaborators{
		LLM:          f.llm,
		Options:      shared.CompletionOptions{Model: "test"},
		Warehouse:    f.wh,
		ControlPlane: f.cp,
		Store:        storagetest.New(),
		Search:       retrieval.SearcherFunc(func(_ context.Context, q string) string { return "guidance for " + q }),
		Signer:       signer,
		Jobs:         f.jobs,
	}, nil, logger.NewTestLogger())
	require.NoError(t, err)
	return f
}

func TestBuildRegistersAllAgents(t *testing.T) {
	f := newFixture(t, "custom")
	names := make([]string, 0)
	for _, a := range f.app.Agents.List() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{
		"detection_agent", "threat_hunter_agent", "investigator_agent", "containment_agent",
		"remediator_agent", "reporter_agent", "intelligence_agent",
	}, names)
}

func TestBuildRequiresReasoningEngine(t *testing.T) {
	_, err := Build(config.DefaultConfig(), Collaborators{}, nil, logger.NewTestLogger())
	assert.Error(t, err)
}

func TestIncidentResponseEndToEnd(t *testing.T) {
	tests := []struct {
		name          string
		failIsolate   error
		wantIsolation models.ActionStatus
	}{
		{name: "all actions succeed", wantIsolation: models.StatusExecuted},
		{name: "isolation failure does not stop the workflow", failIsolate: errors.New("instance is locked"), wantIsolation: models.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "incident_response")
			if tt.failIsolate != nil {
				f.cp.FailOn(controlplane.OpStopInstance, tt.failIsolate)
			}

			res, err := f.app.Coordinator.Run(context.Background(), coordinator.Request{
				Prompt: "Simulate a ransomware outbreak: detect, hunt, investigate, contain, remediate, report.",
			})
			require.NoError(t, err)
			assert.Equal(t, coordinator.ClassIncidentResponse, res.Class)
			assert.True(t, res.Completed)

			want := []string{detector.Name, hunter.Name, investigator.Name, containment.Name, remediator.Name, reporter.Name}
			assert.Equal(t, want, res.CompletedSteps())
			for _, name := range want {
				assert.Contains(t, res.Narrative, "## "+name)
			}

			contain := res.Steps[3]
			require.Len(t, contain.Invocations, 1)
			out := contain.Invocations[0].Output
			assert.Equal(t, "web-frontend-1", out["resource_id"])
			assert.Equal(t, models.ActionIsolateVM, out["action_type"])
			assert.Equal(t, string(tt.wantIsolation), out["status"])

			assert.Len(t, f.cp.CallsOf(controlplane.OpStopInstance), 1)
			assert.Len(t, f.cp.CallsOf(controlplane.OpApplyPatchJob), 1)
			hunted := false
			for _, p := range f.wh.Predicates {
				if strings.Contains(p, "LOWER(message) LIKE '%authentication%'") {
					hunted = true
				}
			}
			assert.True(t, hunted, "hunt predicate not sent: %v", f.wh.Predicates)
		})
	}
}
