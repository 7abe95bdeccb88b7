package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
)

func TestUnconfiguredFallbacks(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(config.DefaultConfig(), nil, logger.NewTestLogger())
	defer p.Close()

	assert.IsType(t, warehouse.Unavailable{}, p.Warehouse(ctx))
	assert.Nil(t, p.Bus(ctx))
	assert.IsType(t, messaging.Unavailable{}, p.Publisher(ctx))
	assert.IsType(t, messaging.Unavailable{}, p.Jobs(ctx))
	assert.IsType(t, storage.Unavailable{}, p.ObjectStore(ctx))

	_, err := p.LLM()
	assert.Error(t, err)

	got := p.Retriever(ctx).RetrieveDocs(ctx, "ransomware")
	assert.Contains(t, got, "[Document Retrieval Error]\nQuery: ransomware\nError: "+retrieval.KindConfiguration)
}

func TestProviderCachesClients(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	p := NewProvider(cfg, nil, logger.NewTestLogger())

	first, err := p.LLM()
	require.NoError(t, err)
	second, err := p.LLM()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, p.Retriever(ctx), p.Retriever(ctx))

	opts := p.CompletionOptions()
	assert.Equal(t, cfg.LLM.Model, opts.Model)
	assert.Equal(t, cfg.LLM.Temperature, opts.Temperature)
}

func TestSignerGeneratesSecret(t *testing.T) {
	p := NewProvider(config.DefaultConfig(), nil, logger.NewTestLogger())
	signer, err := p.Signer()
	require.NoError(t, err)

	again, err := p.Signer()
	require.NoError(t, err)
	assert.Same(t, signer, again)

	link, err := signer.SignedURL("cyberguard-reports", "reports/r1.pdf", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, link, "http://localhost:8080"+storage.DownloadRoute+"cyberguard-reports/reports/r1.pdf?")
}
