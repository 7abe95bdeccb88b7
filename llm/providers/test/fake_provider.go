// Package test provides a scripted reasoning engine for agent tests.
package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

// Responder answers a request directly. A nil response with a nil error
// falls through to the scripted replies.
type Responder func(req *shared.CompletionRequest) (*shared.CompletionResponse, error)

// script holds the replies for one prompt: queued replies first, then the
// sticky reply, then err.
type script struct {
	queue  []*shared.CompletionResponse
	sticky *shared.CompletionResponse
	err    error
}

// FakeProvider is an in-memory LLMProvider keyed by the first user message.
type FakeProvider struct {
	mu        sync.Mutex
	scripts   map[string]*script
	responder Responder
	requests  []*shared.CompletionRequest
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{scripts: make(map[string]*script)}
}

func (fp *FakeProvider) scriptFor(prompt string) *script {
	s, ok := fp.scripts[prompt]
	if !ok {
		s = &script{}
		fp.scripts[prompt] = s
	}
	return s
}

// SetResponder installs r ahead of any scripted reply.
func (fp *FakeProvider) SetResponder(r Responder) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.responder = r
}

// AddResponse answers every request for prompt with resp.
func (fp *FakeProvider) AddResponse(prompt string, resp *shared.CompletionResponse) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.scriptFor(prompt).sticky = resp
}

// AddSequence queues replies consumed one per request for prompt.
func (fp *FakeProvider) AddSequence(prompt string, resps ...*shared.CompletionResponse) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	s := fp.scriptFor(prompt)
	s.queue = append(s.queue, resps...)
}

// AddError fails every request for prompt once its queue is drained.
func (fp *FakeProvider) AddError(prompt string, err error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.scriptFor(prompt).err = err
}

// Calls reports how many completions were requested.
func (fp *FakeProvider) Calls() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return len(fp.requests)
}

// LastRequest returns the most recent request, or nil.
func (fp *FakeProvider) LastRequest() *shared.CompletionRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if len(fp.requests) == 0 {
		return nil
	}
	return fp.requests[len(fp.requests)-1]
}

// Requests returns every request in call order.
func (fp *FakeProvider) Requests() []*shared.CompletionRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]*shared.CompletionRequest(nil), fp.requests...)
}

func (fp *FakeProvider) Name() string { return "fake" }

func (fp *FakeProvider) Complete(ctx context.Context, req *shared.CompletionRequest) (*shared.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fp.mu.Lock()
	fp.requests = append(fp.requests, req)
	responder := fp.responder
	fp.mu.Unlock()

	if responder != nil {
		if resp, err := responder(req); resp != nil || err != nil {
			return resp, err
		}
	}

	prompt := promptOf(req)
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if s, ok := fp.scripts[prompt]; ok {
		switch {
		case len(s.queue) > 0:
			next := s.queue[0]
			s.queue = s.queue[1:]
			return next, nil
		case s.sticky != nil:
			return s.sticky, nil
		case s.err != nil:
			return nil, s.err
		}
	}
	return Text("Mock response for: " + prompt), nil
}

func promptOf(req *shared.CompletionRequest) string {
	for _, m := range req.Messages {
		if m.Role == shared.RoleUser && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

// Text builds a plain assistant reply.
func Text(content string) *shared.CompletionResponse {
	return &shared.CompletionResponse{
		Content:    content,
		Messages:   []shared.Message{{Role: shared.RoleAssistant, Content: content}},
		Usage:      shared.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		StopReason: "stop",
	}
}

// ToolCalls builds an assistant reply requesting calls. Calls without an ID
// are numbered call_0, call_1 and so on.
func ToolCalls(calls ...shared.ToolCall) *shared.CompletionResponse {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%d", i)
		}
	}
	return &shared.CompletionResponse{
		Messages:   []shared.Message{{Role: shared.RoleAssistant, ToolCalls: calls}},
		Usage:      shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		StopReason: "tool_calls",
	}
}
