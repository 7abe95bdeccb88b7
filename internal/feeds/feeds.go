// Package feeds pulls threat intelligence from public feeds.
package feeds

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/transport"
)

// Source names as stored in ThreatIntel.Source.
const (
	SourceCVE     = "cve"
	SourceReddit  = "reddit"
	SourceDarkWeb = "darkweb"
)

// Source fetches one feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.ThreatIntel, error)
}

// fetcher is shared by every source: one HTTP client, one limiter per host.
type fetcher struct {
	client *transport.HTTPClient
	limits *transport.HostLimits
	logger zerolog.Logger
}

func newFetcher(cfg config.FeedsConfig, log zerolog.Logger) *fetcher {
	return &fetcher{
		client: transport.NewHTTPClient(transport.Options{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			RetryMax:  cfg.RetryMax,
		}),
		limits: transport.NewHostLimits(cfg.RequestsPerSecond, cfg.Burst),
		logger: log,
	}
}

func (f *fetcher) getJSON(ctx context.Context, rawURL string, query url.Values, v any) error {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	if err := f.limits.Wait(ctx, host); err != nil {
		return err
	}

	start := time.Now()
	err := f.client.GetJSON(ctx, rawURL, query, v)
	f.logger.Debug().Str("host", host).Dur("duration", time.Since(start)).Err(err).Msg("Feed request finished")
	return err
}

// NewSources returns the Reddit and CVE sources sharing one client, plus the
// dark-web chatter source when its URL is configured.
func NewSources(cfg config.FeedsConfig, log zerolog.Logger) []Source {
	f := newFetcher(cfg, log)
	sources := []Source{
		&Reddit{fetcher: f, url: cfg.RedditURL, limit: cfg.RedditLimit},
		&NVD{fetcher: f, url: cfg.NVDURL, lookback: cfg.Lookback, now: time.Now},
	}
	if cfg.DarkWebURL != "" {
		sources = append(sources, &DarkWeb{fetcher: f, url: cfg.DarkWebURL, limit: cfg.DarkWebLimit, now: time.Now})
	}
	return sources
}
