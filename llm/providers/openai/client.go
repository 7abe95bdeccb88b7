package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

// Config holds OpenAI provider configuration
type Config struct {
	APIKey  string
	BaseURL string
}

// Provider talks to any OpenAI-compatible chat completion endpoint.
type Provider struct {
	client *openai.Client
}

// NewProvider creates a new OpenAI provider
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return nil, errors.New("openai: api key or base url is required")
	}

	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{client: openai.NewClientWithConfig(openaiConfig)}, nil
}

// Name returns the provider name
func (p *Provider) Name() string { return "openai" }

// Client exposes the underlying SDK client for embeddings.
func (p *Provider) Client() *openai.Client { return p.client }

// Complete performs a completion request
func (p *Provider) Complete(ctx context.Context, req *shared.CompletionRequest) (*shared.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chatReq, err := ToOpenAIRequest(req)
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}

	resp, err := p.client.CreateChatCompletion(ctx, *chatReq)
	if err != nil {
		return nil, NormalizeOpenAIError(err)
	}

	return FromOpenAIResponse(resp)
}

// NormalizeOpenAIError converts OpenAI errors to normalized ProviderError
func NormalizeOpenAIError(err error) *shared.ProviderError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &shared.ProviderError{Code: shared.ErrTimeout, Message: err.Error()}
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
			return &shared.ProviderError{Code: shared.ErrContextLength, Message: apiErr.Message, HTTPStatus: status}
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	return &shared.ProviderError{
		Code:       codeForStatus(status),
		Message:    err.Error(),
		HTTPStatus: status,
	}
}

func codeForStatus(status int) shared.ErrorCode {
	switch status {
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return shared.ErrAuth
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return shared.ErrInvalidRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return shared.ErrTimeout
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return shared.ErrUnavailable
	default:
		return shared.ErrUnknown
	}
}
