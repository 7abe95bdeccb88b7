package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	llmapi "github.com/Fangmbeng/CyberGuard-AI-Agent/llm/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
)

// AgentHandler handles agent-related HTTP requests
type AgentHandler struct {
	registry *agents.AgentRegistry
	logger   zerolog.Logger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(registry *agents.AgentRegistry, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{registry: registry, logger: log}
}

// ListAgents handles GET /agents
func (h *AgentHandler) ListAgents(w http.ResponseWriter, _ *http.Request) {
	list := h.registry.List()
	out := make([]llmapi.AgentDescriptor, 0, len(list))
	for _, a := range list {
		out = append(out, agents.Describe(a))
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

// ExecuteAgent handles POST /agents/{name}
func (h *AgentHandler) ExecuteAgent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req api.ExecuteAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, h.logger, http.StatusBadRequest, "Invalid JSON request", err.Error())
		return
	}

	input := &agents.AgentInput{
		Request: req.Request,
		Context: req.Context,
		Data:    req.Data,
		Session: agents.SessionInfo{SessionID: req.SessionID},
	}
	result, err := h.registry.Execute(r.Context(), name, input)
	if err != nil && result == nil {
		writeJSONError(w, h.logger, statusFor(err), "Agent execution failed", err.Error())
		return
	}

	response := api.AgentResponse{
		Success:     result.Success,
		Result:      result.Content,
		Invocations: result.Invocations,
		Stats:       result.Stats,
		Duration:    result.Stats.Duration.String(),
	}
	status := http.StatusOK
	if err != nil {
		response.Error = err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, h.logger, status, response)
}

// ExecuteTool handles POST /agents/{name}/tools/{tool}. The call goes
// through the agent's registry, so argument validation and the tool
// timeout apply.
func (h *AgentHandler) ExecuteTool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	agent, err := h.registry.Get(vars["name"])
	if err != nil {
		writeJSONError(w, h.logger, http.StatusNotFound, "Agent not found", err.Error())
		return
	}
	dispatcher, ok := agent.(interface{ Registry() *tools.Registry })
	if !ok {
		writeJSONError(w, h.logger, http.StatusNotFound, "Tool not found", "agent does not expose its tools")
		return
	}
	if _, err := dispatcher.Registry().Get(vars["tool"]); err != nil {
		writeJSONError(w, h.logger, http.StatusNotFound, "Tool not found", err.Error())
		return
	}

	var req api.ExecuteToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, h.logger, http.StatusBadRequest, "Invalid JSON request", err.Error())
		return
	}
	if req.Input == nil {
		req.Input = map[string]any{}
	}

	res, err := dispatcher.Registry().Execute(r.Context(), &tools.ToolInput{Name: vars["tool"], Data: req.Input})
	if err != nil {
		writeJSONError(w, h.logger, http.StatusInternalServerError, "Tool execution failed", err.Error())
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, h.logger, status, api.ToolResponse{
		Success:  res.Success,
		Output:   res.Data,
		Error:    res.Error,
		Duration: res.Stats.ExecutionTime,
	})
}
