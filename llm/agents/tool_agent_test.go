package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/policies"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/test"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
)

func testPolicy() policies.Policy {
	return policies.Policy{
		Name:        "detection_agent",
		Description: "Scans logs for anomalies",
		Instruction: "Detect anomalies.",
	}
}

func detectTool(calls *int, fail bool) tools.Tool {
	return tools.NewFunc("detect_anomalies", "Detect anomalies", tools.Object(map[string]any{
		"limit": map[string]any{"type": "integer", "minimum": 1, "default": 100},
	}), func(_ context.Context, args map[string]any) (any, error) {
		*calls++
		if fail {
			return nil, errors.New("warehouse unavailable")
		}
		return []map[string]any{{"ip": "10.0.0.1", "limit": tools.Int(args, "limit", 0)}}, nil
	})
}

func newAgent(t *testing.T, maxIter int, ts ...tools.Tool) *ToolAgent {
	t.Helper()
	a, err := NewToolAgent(Config{
		Policy:        testPolicy(),
		Tools:         ts,
		MaxIterations: maxIter,
		ToolTimeout:   time.Second,
		Logger:        logger.NewTestLogger(),
	})
	require.NoError(t, err)
	return a
}

func TestToolAgentLoop(t *testing.T) {
	const request = "Scan the last hour of logs"

	tests := []struct {
		name          string
		failTool      bool
		responses     []*shared.CompletionResponse
		wantContent   string
		wantCalls     int
		wantSuccesses []bool
	}{
		{
			name:          "answers without tools",
			responses:     []*shared.CompletionResponse{test.Text("No anomalies.")},
			wantContent:   "No anomalies.",
			wantSuccesses: []bool{},
		},
		{
			name: "tool call then answer",
			responses: []*shared.CompletionResponse{
				test.ToolCalls(shared.ToolCall{Name: "detect_anomalies", Arguments: map[string]any{"limit": float64(5)}}),
				test.Text("One anomaly from 10.0.0.1."),
			},
			wantContent:   "One anomaly from 10.0.0.1.",
			wantCalls:     1,
			wantSuccesses: []bool{true},
		},
		{
			name:     "tool failure is recorded and the loop continues",
			failTool: true,
			responses: []*shared.CompletionResponse{
				test.ToolCalls(shared.ToolCall{Name: "detect_anomalies"}),
				test.Text("Detection unavailable."),
			},
			wantContent:   "Detection unavailable.",
			wantCalls:     1,
			wantSuccesses: []bool{false},
		},
		{
			name: "unknown tool is recorded as a failure",
			responses: []*shared.CompletionResponse{
				test.ToolCalls(shared.ToolCall{Name: "drop_tables"}),
				test.Text("Done."),
			},
			wantContent:   "Done.",
			wantSuccesses: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			agent := newAgent(t, 4, detectTool(&calls, tt.failTool))
			fp := test.NewFakeProvider()
			fp.AddSequence(request, tt.responses...)
			reg := NewAgentRegistry(fp, shared.CompletionOptions{Model: "test"}, logger.NewTestLogger())
			require.NoError(t, reg.Register(agent))

			res, err := reg.Execute(context.Background(), "detection_agent", &AgentInput{Request: request})
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantContent, res.Content)
			assert.Equal(t, tt.wantCalls, calls)

			successes := make([]bool, 0, len(res.Invocations))
			for _, inv := range res.Invocations {
				successes = append(successes, inv.Success)
			}
			assert.Equal(t, tt.wantSuccesses, successes)
			assert.Equal(t, len(tt.responses), res.Stats.Iterations)
			assert.Equal(t, len(tt.responses), fp.Calls())
		})
	}
}

func TestToolAgentFeedsResultsBack(t *testing.T) {
	const request = "Scan"
	calls := 0
	agent := newAgent(t, 4, detectTool(&calls, false))
	fp := test.NewFakeProvider()
	fp.AddSequence(request,
		test.ToolCalls(shared.ToolCall{Name: "detect_anomalies"}),
		test.Text("done"),
	)

	_, err := agent.Execute(&AgentInput{Request: request}, NewAgentRegistry(fp, shared.CompletionOptions{}, logger.NewTestLogger()).Runtime(context.Background()))
	require.NoError(t, err)

	last := fp.LastRequest()
	require.Len(t, last.Messages, 4)
	assert.Equal(t, shared.RoleSystem, last.Messages[0].Role)
	assert.Equal(t, shared.RoleAssistant, last.Messages[2].Role)
	toolMsg := last.Messages[3]
	assert.Equal(t, shared.RoleTool, toolMsg.Role)
	require.NotNil(t, toolMsg.ToolInvocation)
	assert.Equal(t, "call_0", toolMsg.ToolInvocation.CallID)
	assert.Equal(t, true, toolMsg.ToolInvocation.Result["success"])

	require.Len(t, last.Options.Tools, 1)
	assert.Equal(t, "detect_anomalies", last.Options.Tools[0].Name)
}

func TestToolAgentMaxIterations(t *testing.T) {
	const request = "Loop forever"
	calls := 0
	agent := newAgent(t, 2, detectTool(&calls, false))
	fp := test.NewFakeProvider()
	fp.AddResponse(request, test.ToolCalls(shared.ToolCall{Name: "detect_anomalies"}))

	res, err := agent.Execute(&AgentInput{Request: request}, NewAgentRegistry(fp, shared.CompletionOptions{}, logger.NewTestLogger()).Runtime(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Iterations)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "max_iterations", res.Metadata["stopped"])
	assert.True(t, strings.HasPrefix(res.Content, "Tool results:\n- detect_anomalies succeeded"))
}

func TestToolAgentProviderError(t *testing.T) {
	const request = "Scan"
	calls := 0
	agent := newAgent(t, 4, detectTool(&calls, false))
	fp := test.NewFakeProvider()
	fp.AddError(request, &shared.ProviderError{Code: shared.ErrUnavailable, Message: "model down"})

	res, err := agent.Execute(&AgentInput{Request: request}, NewAgentRegistry(fp, shared.CompletionOptions{}, logger.NewTestLogger()).Runtime(context.Background()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detection_agent")
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestAgentRegistry(t *testing.T) {
	calls := 0
	fp := test.NewFakeProvider()
	reg := NewAgentRegistry(fp, shared.CompletionOptions{}, logger.NewTestLogger())
	agent := newAgent(t, 1, detectTool(&calls, false))
	require.NoError(t, reg.Register(agent))
	assert.Error(t, reg.Register(agent))

	_, err := reg.Get("missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = reg.Execute(context.Background(), "detection_agent", &AgentInput{Request: "  "})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Zero(t, fp.Calls())

	desc := Describe(agent)
	assert.Equal(t, "detection_agent", desc.Name)
	require.Len(t, desc.Tools, 1)
	assert.Equal(t, "detect_anomalies", desc.Tools[0].Function.Name)
}

func TestBroadcastAdvisories(t *testing.T) {
	calls := 0
	fp := test.NewFakeProvider()
	reg := NewAgentRegistry(fp, shared.CompletionOptions{}, logger.NewTestLogger())
	agent := newAgent(t, 1, detectTool(&calls, false))
	require.NoError(t, reg.Register(agent))

	n := reg.Broadcast(AgentUpdate{Source: "coordinator", Advisory: "Block CVE-2024-0001 exploit traffic"})
	assert.Equal(t, 1, n)

	_, err := reg.Execute(context.Background(), "detection_agent", &AgentInput{Request: "Scan"})
	require.NoError(t, err)
	system := fp.LastRequest().Messages[0].Content
	assert.Equal(t, "Detect anomalies.\n\nActive advisories:\n- Block CVE-2024-0001 exploit traffic", system)
}

func TestAdvisoriesAreBounded(t *testing.T) {
	tests := []struct {
		name    string
		updates []AgentUpdate
		want    []string
	}{
		{
			name: "oldest evicted",
			updates: func() []AgentUpdate {
				var us []AgentUpdate
				for i := 0; i < 500; i++ {
					us = append(us, AgentUpdate{Workflow: fmt.Sprintf("wf-%03d", i), Advisory: fmt.Sprintf("Zero-day protection in effect for: exploit %03d", i)})
				}
				return us
			}(),
			want: []string{
				"Zero-day protection in effect for: exploit 495",
				"Zero-day protection in effect for: exploit 496",
				"Zero-day protection in effect for: exploit 497",
				"Zero-day protection in effect for: exploit 498",
				"Zero-day protection in effect for: exploit 499",
			},
		},
		{
			name: "same workflow replaces",
			updates: []AgentUpdate{
				{Workflow: "wf-1", Advisory: "first draft"},
				{Workflow: "wf-2", Advisory: "other"},
				{Workflow: "wf-1", Advisory: "final"},
			},
			want: []string{"other", "final"},
		},
		{
			name: "duplicate text without workflow",
			updates: []AgentUpdate{
				{Advisory: "Block CVE-2024-0001"},
				{Advisory: "Block CVE-2024-0001"},
			},
			want: []string{"Block CVE-2024-0001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			agent := newAgent(t, 1, detectTool(&calls, false))
			for _, u := range tt.updates {
				agent.ReceiveUpdate(u)
			}
			prompt := agent.SystemPrompt()
			assert.Equal(t, tt.want, prompt.Advisories)
			assert.LessOrEqual(t, len(prompt.Advisories), MaxAdvisories)
		})
	}
}

func TestAdvisoryPromptLengthIsBounded(t *testing.T) {
	calls := 0
	agent := newAgent(t, 1, detectTool(&calls, false))
	advisory := strings.Repeat("x", 200)

	var lengths []int
	for i := 0; i < 100; i++ {
		agent.ReceiveUpdate(AgentUpdate{Workflow: fmt.Sprintf("wf-%d", i), Advisory: advisory})
		lengths = append(lengths, len(agent.SystemPrompt().Render()))
	}
	assert.Equal(t, lengths[MaxAdvisories-1], lengths[len(lengths)-1])
	assert.Less(t, lengths[len(lengths)-1], len("Detect anomalies.")+(MaxAdvisories+1)*(len(advisory)+3)+len("\n\nActive advisories:\n"))
}

func TestBuildUserPrompt(t *testing.T) {
	assert.Equal(t, "hi", BuildUserPrompt(&AgentInput{Request: "hi"}))
	got := BuildUserPrompt(&AgentInput{
		Request: "Investigate",
		Context: []StepOutput{{Agent: "detection_agent", Content: "two anomalies\n"}},
	})
	assert.Equal(t, "Investigate\n\nContext from previous steps:\n\n## detection_agent\ntwo anomalies", got)
}
