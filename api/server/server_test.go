package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/app"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane/controlplanetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage/storagetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse/warehousetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/main-agents/coordinator"
	llmapi "github.com/Fangmbeng/CyberGuard-AI-Agent/llm/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/test"
)

type testEnv struct {
	handler http.Handler
	cp      *controlplanetest.Fake
	store   *storagetest.Memory
	signer  *storage.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fp := test.NewFakeProvider()
	fp.SetResponder(func(*shared.CompletionRequest) (*shared.CompletionResponse, error) {
		return test.Text("done"), nil
	})

	signer, err := storage.NewSigner([]byte("test-secret"), "http://localhost:8080")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	env := &testEnv{cp: controlplanetest.New(), store: storagetest.New(), signer: signer}
	a, err := app.Build(config.DefaultConfig(), app.Collaborators{
		LLM:          fp,
		Warehouse:    &warehousetest.Fake{},
		ControlPlane: env.cp,
		Store:        env.store,
		Search:       retrieval.SearcherFunc(func(_ context.Context, q string) string { return "docs for " + q }),
		Signer:       signer,
	}, m, logger.NewTestLogger())
	require.NoError(t, err)

	env.handler = NewServer(Config{Address: ":0", Gatherer: reg}, a, logger.NewTestLogger()).Handler()
	return env
}

func (e *testEnv) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodOptions, "/workflows", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAgents(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []llmapi.AgentDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 7)
	assert.Equal(t, "detection_agent", out[0].Name)
	assert.Equal(t, "detect_anomalies", out[0].Tools[0].Function.Name)
}

func TestExecuteAgent(t *testing.T) {
	tests := []struct {
		name       string
		agent      string
		body       any
		wantStatus int
	}{
		{name: "runs the agent", agent: "detection_agent", body: api.ExecuteAgentRequest{Request: "Scan logs"}, wantStatus: http.StatusOK},
		{name: "unknown agent", agent: "missing", body: api.ExecuteAgentRequest{Request: "Scan logs"}, wantStatus: http.StatusNotFound},
		{name: "blank request", agent: "detection_agent", body: api.ExecuteAgentRequest{Request: " "}, wantStatus: http.StatusBadRequest},
		{name: "malformed body", agent: "detection_agent", body: "not an object", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodPost, "/agents/"+tt.agent, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				var resp api.AgentResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				assert.Equal(t, "done", resp.Result)
			}
		})
	}
}

func TestExecuteTool(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		input      map[string]any
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "isolates the instance",
			path:       "/agents/containment_agent/tools/isolate_vm",
			input:      map[string]any{"resource_id": "web-frontend-1"},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "schema rejects missing argument",
			path:       "/agents/containment_agent/tools/isolate_vm",
			input:      map[string]any{},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown tool",
			path:       "/agents/containment_agent/tools/drop_tables",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown agent",
			path:       "/agents/missing/tools/isolate_vm",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodPost, tt.path, api.ExecuteToolRequest{Input: tt.input})
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Len(t, env.cp.CallsOf(controlplane.OpStopInstance), tt.wantCalls)

			if tt.wantStatus == http.StatusOK {
				var resp api.ToolResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "web-frontend-1", resp.Output["resource_id"])
				assert.Equal(t, "executed", resp.Output["status"])
			}
		})
	}
}

func TestRunWorkflow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/workflows", api.WorkflowRequest{Prompt: "Check the perimeter"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result coordinator.WorkflowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, coordinator.ClassCustom, result.Class)
	assert.True(t, result.Completed)

	rec = env.do(http.MethodPost, "/workflows", api.WorkflowRequest{Prompt: "x", Class: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/workflows", api.WorkflowRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cyberguard_workflows_total")
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	env.store.Put("cyberguard-reports", "reports/r1.pdf", []byte("%PDF-1.3"), "application/pdf")

	link := func(path string) string {
		raw, err := env.signer.SignedURL("cyberguard-reports", path, time.Minute)
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u.RequestURI()
	}

	rec := env.do(http.MethodGet, link("reports/r1.pdf"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3", rec.Body.String())

	tampered := strings.Replace(link("reports/r1.pdf"), "signature=", "signature=00", 1)
	rec = env.do(http.MethodGet, tampered, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, link("reports/missing.pdf"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
