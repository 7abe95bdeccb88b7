package shared

import "fmt"

// ErrorCode classifies upstream failures independent of the backend.
type ErrorCode string

const (
	ErrRateLimited    ErrorCode = "rate_limited"
	ErrTimeout        ErrorCode = "timeout"
	ErrAuth           ErrorCode = "auth"
	ErrInvalidRequest ErrorCode = "invalid_request"
	ErrNotFound       ErrorCode = "not_found"
	ErrContextLength  ErrorCode = "context_length_exceeded"
	ErrUnavailable    ErrorCode = "service_unavailable"
	ErrUnknown        ErrorCode = "unknown"
)

// ProviderError is a classified failure from the reasoning engine or an
// outbound HTTP source.
type ProviderError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
}

func (e *ProviderError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ProviderError{Code: ErrInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// Validate rejects requests no backend could serve.
func (r *CompletionRequest) Validate() error {
	if r == nil {
		return invalid("request cannot be nil")
	}
	if r.Options.Model == "" {
		return invalid("model cannot be empty")
	}
	if len(r.Messages) == 0 {
		return invalid("messages cannot be empty")
	}
	for i, m := range r.Messages {
		if !m.Role.valid() {
			return invalid("message %d: invalid role %q", i, m.Role)
		}
		if m.Role == RoleTool && m.ToolInvocation == nil {
			return invalid("message %d: tool message without invocation", i)
		}
	}
	return nil
}
