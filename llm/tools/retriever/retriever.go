package retriever

import (
	"context"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/tools"
)

// Name is the tool name shared by every agent.
const Name = "retrieve_docs"

// Tool answers free-text questions from the threat intelligence corpus.
type Tool struct {
	searcher retrieval.Searcher
}

var _ tools.Tool = (*Tool)(nil)

// New returns the retrieval tool.
func New(searcher retrieval.Searcher) *Tool {
	return &Tool{searcher: searcher}
}

// Name returns the tool name
func (t *Tool) Name() string { return Name }

// Description returns the tool description
func (t *Tool) Description() string {
	return "Search the threat intelligence and playbook corpus. Use this when you need background on a threat, an IOC, a CVE or response guidance. Returns ranked passages, or an inline error message when retrieval is unavailable."
}

// Schema returns the JSON schema for input validation
func (t *Tool) Schema() map[string]any {
	return tools.Object(map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Free-text question or keywords",
			"minLength":   1,
		},
	}, "query")
}

// Definition returns the OpenAI tool definition
func (t *Tool) Definition() *api.ToolDefinition {
	return tools.ToOpenAISchema(Name, t.Description(), t.Schema())
}

// Execute runs the search. Retrieval never fails; backend errors come back
// as text in "context".
func (t *Tool) Execute(ctx context.Context, input *tools.ToolInput) (*tools.ToolResult, error) {
	query := tools.String(input.Data, "query", "")
	return &tools.ToolResult{
		Success: true,
		Data: map[string]any{
			"query":   query,
			"context": t.searcher.RetrieveDocs(ctx, query),
		},
	}, nil
}

// Search calls the searcher directly, for callers outside a reasoning loop.
func (t *Tool) Search(ctx context.Context, query string) string {
	return t.searcher.RetrieveDocs(ctx, query)
}
