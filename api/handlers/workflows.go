package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/main-agents/coordinator"
)

// WorkflowRunner is implemented by *coordinator.Coordinator.
type WorkflowRunner interface {
	Run(ctx context.Context, req coordinator.Request) (*coordinator.WorkflowResult, error)
}

// WorkflowHandler runs coordinator workflows
type WorkflowHandler struct {
	runner WorkflowRunner
	logger zerolog.Logger
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(runner WorkflowRunner, log zerolog.Logger) *WorkflowHandler {
	return &WorkflowHandler{runner: runner, logger: log}
}

// RunWorkflow handles POST /workflows. A halted workflow is still a 200 with
// Completed false; only invalid requests and classification failures are
// errors.
func (h *WorkflowHandler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req api.WorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, h.logger, http.StatusBadRequest, "Invalid JSON request", err.Error())
		return
	}

	result, err := h.runner.Run(r.Context(), coordinator.Request{
		Prompt:    req.Prompt,
		Class:     coordinator.Class(req.Class),
		SessionID: req.SessionID,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeJSONError(w, h.logger, status, "Workflow failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}
