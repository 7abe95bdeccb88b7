package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimits throttles outbound requests per upstream host. Feeds such as
// NVD publish hard request quotas, so each host gets its own token bucket.
type HostLimits struct {
	rps   float64
	burst int

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewHostLimits returns limits allowing rps requests per second with the
// given burst to every host. A non-positive rps disables throttling.
func NewHostLimits(rps float64, burst int) *HostLimits {
	if burst < 1 {
		burst = 1
	}
	return &HostLimits{rps: rps, burst: burst, hosts: make(map[string]*rate.Limiter)}
}

// For returns the bucket for host, creating it on first use.
func (h *HostLimits) For(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.hosts[host]; ok {
		return l
	}
	limit := rate.Limit(h.rps)
	if h.rps <= 0 {
		limit = rate.Inf
	}
	l := rate.NewLimiter(limit, h.burst)
	h.hosts[host] = l
	return l
}

// Wait blocks until host may be called again or ctx is done.
func (h *HostLimits) Wait(ctx context.Context, host string) error {
	return h.For(host).Wait(ctx)
}
