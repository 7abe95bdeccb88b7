package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

const defaultUserAgent = "cyberguardian-agent"

// Options configure outbound JSON requests to threat feeds. RetryMax is the
// number of extra attempts after a 429 or 5xx; zero disables retries.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	RetryMax     int
	RetryBackoff time.Duration
}

// HTTPClient fetches JSON documents with linear backoff retries.
type HTTPClient struct {
	client *http.Client
	opts   Options
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &HTTPClient{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// GetJSON issues GET rawURL?query and decodes a 2xx body into v. Non-2xx
// responses are returned as *shared.ProviderError.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, query url.Values, v any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(resp.StatusCode, fmt.Sprintf("GET %s returned %d: %s", rawURL, resp.StatusCode, body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.opts.RetryBackoff * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = statusError(resp.StatusCode, fmt.Sprintf("GET %s returned %d", rawURL, resp.StatusCode))
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func statusError(status int, msg string) *shared.ProviderError {
	code := shared.ErrUnknown
	switch {
	case status == http.StatusTooManyRequests:
		code = shared.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = shared.ErrAuth
	case status == http.StatusNotFound:
		code = shared.ErrNotFound
	case status >= 500:
		code = shared.ErrUnavailable
	case status >= 400:
		code = shared.ErrInvalidRequest
	}
	return &shared.ProviderError{Code: code, Message: msg, HTTPStatus: status}
}
