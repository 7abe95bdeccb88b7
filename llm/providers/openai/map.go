package openai

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

// ToOpenAIRequest builds the chat completion request for req.
func ToOpenAIRequest(req *shared.CompletionRequest) (*openai.ChatCompletionRequest, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg, err := toMessage(m)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	out := &openai.ChatCompletionRequest{
		Model:       req.Options.Model,
		Messages:    msgs,
		MaxTokens:   req.Options.MaxTokens,
		Temperature: req.Options.Temperature,
	}
	if len(req.Options.Tools) > 0 {
		out.Tools = toTools(req.Options.Tools)
		out.ToolChoice = "auto"
	}
	return out, nil
}

func toMessage(m shared.Message) (openai.ChatCompletionMessage, error) {
	if inv := m.ToolInvocation; inv != nil {
		result, err := json.Marshal(inv.Result)
		if err != nil {
			return openai.ChatCompletionMessage{}, fmt.Errorf("tool result %s: %w", inv.Name, err)
		}
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    string(result),
			ToolCallID: inv.CallID,
		}, nil
	}

	msg := openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	for _, call := range m.ToolCalls {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			return msg, fmt.Errorf("tool call %s: %w", call.Name, err)
		}
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:       call.ID,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: call.Name, Arguments: string(args)},
		})
	}
	return msg, nil
}

func toTools(defs []shared.ToolDef) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.JSONSchema,
			},
		})
	}
	return tools
}

// FromOpenAIResponse converts the first choice of resp. Tool call arguments
// that are not a JSON object are reported as ErrInvalidRequest.
func FromOpenAIResponse(resp openai.ChatCompletionResponse) (*shared.CompletionResponse, error) {
	out := &shared.CompletionResponse{
		Usage: shared.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out, nil
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.StopReason = string(choice.FinishReason)

	msg := shared.Message{Role: shared.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		call, err := fromToolCall(tc)
		if err != nil {
			return nil, err
		}
		msg.ToolCalls = append(msg.ToolCalls, call)
	}
	out.Messages = []shared.Message{msg}
	return out, nil
}

func fromToolCall(tc openai.ToolCall) (shared.ToolCall, error) {
	args := map[string]any{}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return shared.ToolCall{}, &shared.ProviderError{
				Code:    shared.ErrInvalidRequest,
				Message: fmt.Sprintf("tool call %s: invalid arguments: %v", tc.Function.Name, err),
			}
		}
	}
	return shared.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}, nil
}
