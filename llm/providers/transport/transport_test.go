package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

func TestGetJSON(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		assert.Equal(t, "cyberguardian-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "100", r.URL.Query().Get("resultsPerPage"))
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{RetryMax: 1, RetryBackoff: time.Millisecond})
	var out struct{ OK bool }
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, url.Values{"resultsPerPage": {"100"}}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetJSONNoRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{})
	err := c.GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	var pe *shared.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, shared.ErrRateLimited, pe.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetJSONClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewHTTPClient(Options{}).GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	var pe *shared.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, shared.ErrAuth, pe.Code)
	assert.Equal(t, http.StatusForbidden, pe.HTTPStatus)
}

func TestHostLimits(t *testing.T) {
	limits := NewHostLimits(1, 1)
	nvd := limits.For("services.nvd.nist.gov")
	assert.Same(t, nvd, limits.For("services.nvd.nist.gov"))
	assert.True(t, nvd.Allow())
	assert.False(t, nvd.Allow())
	assert.True(t, limits.For("api.first.org").Allow(), "hosts are throttled independently")

	unlimited := NewHostLimits(0, 0)
	for i := 0; i < 10; i++ {
		require.NoError(t, unlimited.Wait(context.Background(), "otx.alienvault.com"))
	}
}
