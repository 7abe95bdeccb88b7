package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/test"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
)

type stubAgent struct {
	name    string
	content string
	err     error

	mu      sync.Mutex
	inputs  []*agents.AgentInput
	updates []agents.AgentUpdate
}

func (s *stubAgent) Name() string        { return s.name }
func (s *stubAgent) Description() string { return "stub " + s.name }
func (s *stubAgent) Tools() []tools.Tool { return nil }

func (s *stubAgent) ValidateInput(input *agents.AgentInput) []agents.ValidationError {
	return agents.ValidateRequest(input)
}

func (s *stubAgent) Execute(input *agents.AgentInput, _ *agents.Runtime) (*agents.AgentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return &agents.AgentResult{}, s.err
	}
	return &agents.AgentResult{Content: s.content, Success: true}, nil
}

func (s *stubAgent) ReceiveUpdate(u agents.AgentUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

var agentNames = []string{
	"detection_agent", "threat_hunter_agent", "investigator_agent", "containment_agent",
	"remediator_agent", "intelligence_agent", "reporter_agent",
}

type fixture struct {
	coord   *Coordinator
	stubs   map[string]*stubAgent
	llm     *test.FakeProvider
	bus     *messaging.Recorder
	metrics *metrics.Metrics
	queries []string
}

func newFixture(t *testing.T, class Class, configure func(map[string]*stubAgent)) *fixture {
	t.Helper()
	f := &fixture{
		stubs:   map[string]*stubAgent{},
		llm:     test.NewFakeProvider(),
		bus:     &messaging.Recorder{},
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	}
	reg := agents.NewAgentRegistry(f.llm, shared.CompletionOptions{}, logger.NewTestLogger())
	for _, name := range agentNames {
		s := &stubAgent{name: name, content: name + " findings"}
		f.stubs[name] = s
	}
	if configure != nil {
		configure(f.stubs)
	}
	for _, name := range agentNames {
		require.NoError(t, reg.Register(f.stubs[name]))
	}

	search := retrieval.SearcherFunc(func(_ context.Context, q string) string {
		f.queries = append(f.queries, q)
		return "retrieved: " + q
	})
	coord, err := New(Config{
		Agents:     reg,
		Classifier: ClassifierFunc(func(context.Context, string) (Class, error) { return class, nil }),
		Search:     search,
		Publisher:  f.bus,
		Settings:   agents.Settings{Logger: logger.NewTestLogger()},
		Metrics:    f.metrics,
		Logger:     logger.NewTestLogger(),
	})
	require.NoError(t, err)
	f.coord = coord
	return f
}

func TestWorkflowSequences(t *testing.T) {
	tests := []struct {
		class Class
		want  []string
	}{
		{ClassIncidentResponse, []string{"detection_agent", "threat_hunter_agent", "investigator_agent", "containment_agent", "remediator_agent", "reporter_agent"}},
		{ClassProactivePrevention, []string{"intelligence_agent", "threat_hunter_agent", "investigator_agent", "remediator_agent"}},
		{ClassZeroDay, []string{"detection_agent", "threat_hunter_agent", "investigator_agent", "intelligence_agent"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			f := newFixture(t, tt.class, nil)
			res, err := f.coord.Run(context.Background(), Request{Prompt: "Simulate an attack"})
			require.NoError(t, err)

			assert.True(t, res.Completed)
			assert.Equal(t, tt.class, res.Class)
			assert.Equal(t, tt.want, res.CompletedSteps())
			assert.Empty(t, res.FailedSteps())
			for _, name := range tt.want {
				assert.Contains(t, res.Narrative, "## "+name+"\n"+name+" findings")
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Workflows.WithLabelValues(string(tt.class), "true")))
		})
	}
}

func TestContextIsCarriedForward(t *testing.T) {
	f := newFixture(t, ClassIncidentResponse, nil)
	_, err := f.coord.Run(context.Background(), Request{Prompt: "Ransomware on web tier", SessionID: "sess-1"})
	require.NoError(t, err)

	reporter := f.stubs["reporter_agent"].inputs[0]
	assert.Equal(t, "Ransomware on web tier", reporter.Request)
	assert.Equal(t, "sess-1", reporter.Session.SessionID)
	assert.Equal(t, string(ClassIncidentResponse), reporter.Session.Workflow)
	require.Len(t, reporter.Context, 5)
	assert.Equal(t, "detection_agent", reporter.Context[0].Agent)
	assert.Equal(t, "remediator_agent findings", reporter.Context[4].Content)

	assert.Empty(t, f.stubs["detection_agent"].inputs[0].Context)
}

func TestStepFailureHalts(t *testing.T) {
	f := newFixture(t, ClassIncidentResponse, func(s map[string]*stubAgent) {
		s["investigator_agent"].err = errors.New("agent investigator_agent: model unavailable")
	})

	res, err := f.coord.Run(context.Background(), Request{Prompt: "Respond to the outbreak"})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, []string{"detection_agent", "threat_hunter_agent"}, res.CompletedSteps())
	assert.Equal(t, []string{"investigator_agent"}, res.FailedSteps())
	assert.Empty(t, f.stubs["containment_agent"].inputs)
	assert.Contains(t, res.Narrative, "## investigator_agent\nStep failed: agent investigator_agent: model unavailable")
	assert.True(t, strings.HasSuffix(res.Narrative, "Workflow halted before completion."))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WorkflowSteps.WithLabelValues("incident_response", "investigator_agent", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Workflows.WithLabelValues("incident_response", "false")))
}

func TestEmptyNarrativeFallsBackToRetrieval(t *testing.T) {
	f := newFixture(t, ClassProactivePrevention, func(s map[string]*stubAgent) {
		s["threat_hunter_agent"].content = "   "
	})

	res, err := f.coord.Run(context.Background(), Request{Prompt: "Harden against APT29"})
	require.NoError(t, err)
	require.True(t, res.Completed)

	step := res.Steps[1]
	assert.True(t, step.Retrieved)
	assert.Equal(t, "retrieved: threat_hunter_agent: Harden against APT29", step.Content)
	assert.Equal(t, []string{"threat_hunter_agent: Harden against APT29"}, f.queries)

	next := f.stubs["investigator_agent"].inputs[0]
	assert.Equal(t, step.Content, next.Context[1].Content)
}

func TestZeroDayBroadcast(t *testing.T) {
	f := newFixture(t, ClassZeroDay, func(s map[string]*stubAgent) {
		s["intelligence_agent"].content = "CVE-2026-9999 exploited in the wild"
	})

	res, err := f.coord.Run(context.Background(), Request{Prompt: "New exploit in our VPN appliance"})
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.NotNil(t, res.Broadcast)
	assert.Equal(t, len(agentNames), res.Broadcast.Delivered)
	assert.True(t, res.Broadcast.Published)

	for _, name := range agentNames {
		updates := f.stubs[name].updates
		require.Len(t, updates, 1, name)
		assert.Contains(t, updates[0].Advisory, "CVE-2026-9999 exploited in the wild")
		assert.Equal(t, Name, updates[0].Source)
	}
	assert.Equal(t, 1, f.bus.Count(messaging.SubjectAgentUpdate))
	assert.Contains(t, res.Narrative, "Advisory delivered to 7 agents.")
}

func TestZeroDayAdvisoryTruncatesOnRunes(t *testing.T) {
	intel := strings.Repeat("脆弱性が悪用されています。", 200)
	f := newFixture(t, ClassZeroDay, func(s map[string]*stubAgent) {
		s["intelligence_agent"].content = intel
	})

	res, err := f.coord.Run(context.Background(), Request{Prompt: "Zero-day in VPN"})
	require.NoError(t, err)
	require.True(t, res.Completed)

	updates := f.stubs["detection_agent"].updates
	require.Len(t, updates, 1)
	advisory := updates[0].Advisory
	assert.True(t, utf8.ValidString(advisory))
	assert.Contains(t, advisory, string([]rune(intel)[:maxAdvisoryContext])+"...")
	assert.NotContains(t, advisory, string([]rune(intel)[:maxAdvisoryContext+1]))
}

func TestZeroDayPublishFailureIsReported(t *testing.T) {
	f := newFixture(t, ClassZeroDay, nil)
	f.bus.Err = errors.New("nats: connection closed")

	res, err := f.coord.Run(context.Background(), Request{Prompt: "Zero-day in TLS library"})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.False(t, res.Broadcast.Published)
	assert.Equal(t, "nats: connection closed", res.Broadcast.PublishError)
	assert.Equal(t, len(agentNames), res.Broadcast.Delivered)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishErrors))
}

func TestNoBroadcastWhenZeroDayHalts(t *testing.T) {
	f := newFixture(t, ClassZeroDay, func(s map[string]*stubAgent) {
		s["detection_agent"].err = errors.New("boom")
	})
	res, err := f.coord.Run(context.Background(), Request{Prompt: "Zero-day"})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Nil(t, res.Broadcast)
	assert.Zero(t, f.bus.Count(messaging.SubjectAgentUpdate))
}

func TestCustomDelegation(t *testing.T) {
	const prompt = "Check whether 45.33.32.156 touched anything"
	f := newFixture(t, ClassCustom, nil)
	f.llm.AddSequence(prompt,
		test.ToolCalls(shared.ToolCall{Name: "delegate_threat_hunter_agent", Arguments: map[string]any{"request": "hunt for 45.33.32.156"}}),
		test.ToolCalls(shared.ToolCall{Name: "retrieve_docs", Arguments: map[string]any{"query": "45.33.32.156"}}),
		test.Text("The address only scanned the perimeter."),
	)

	res, err := f.coord.Run(context.Background(), Request{Prompt: prompt})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, ClassCustom, res.Class)
	assert.Equal(t, []string{"threat_hunter_agent", Name}, res.CompletedSteps())
	assert.Equal(t, "hunt for 45.33.32.156", f.stubs["threat_hunter_agent"].inputs[0].Request)
	assert.Contains(t, res.Narrative, "## threat_hunter_agent\nthreat_hunter_agent findings")
	assert.Contains(t, res.Narrative, "## coordinator\nThe address only scanned the perimeter.")

	toolNames := make([]string, 0)
	for _, def := range f.llm.Requests()[0].Options.Tools {
		toolNames = append(toolNames, def.Name)
	}
	assert.Equal(t, []string{
		"delegate_detection_agent", "delegate_threat_hunter_agent", "delegate_investigator_agent",
		"delegate_containment_agent", "delegate_remediator_agent", "delegate_intelligence_agent",
		"delegate_reporter_agent", "retrieve_docs",
	}, toolNames)
}

func TestCustomDelegateFailureDoesNotAbort(t *testing.T) {
	const prompt = "Lock the intern account"
	f := newFixture(t, ClassCustom, func(s map[string]*stubAgent) {
		s["containment_agent"].err = errors.New("iam unavailable")
	})
	f.llm.AddSequence(prompt,
		test.ToolCalls(shared.ToolCall{Name: "delegate_containment_agent", Arguments: map[string]any{"request": "lock intern"}}),
		test.Text("Containment failed; escalate to on-call."),
	)

	res, err := f.coord.Run(context.Background(), Request{Prompt: prompt})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, []string{"containment_agent"}, res.FailedSteps())
	assert.Equal(t, []string{Name}, res.CompletedSteps())
}

func TestCustomLoopProviderError(t *testing.T) {
	const prompt = "Anything"
	f := newFixture(t, ClassCustom, nil)
	f.llm.AddError(prompt, errors.New("quota exhausted"))

	res, err := f.coord.Run(context.Background(), Request{Prompt: prompt})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, []string{Name}, res.FailedSteps())
}

func TestRunValidation(t *testing.T) {
	f := newFixture(t, ClassIncidentResponse, nil)
	var verr *models.ValidationError

	_, err := f.coord.Run(context.Background(), Request{Prompt: "  "})
	assert.ErrorAs(t, err, &verr)

	_, err = f.coord.Run(context.Background(), Request{Prompt: "x", Class: "exfiltration"})
	assert.ErrorAs(t, err, &verr)

	res, err := f.coord.Run(context.Background(), Request{Prompt: "x", Class: "Zero-Day"})
	require.NoError(t, err)
	assert.Equal(t, ClassZeroDay, res.Class)
}
