// Package clients builds the external collaborators once per process.
// Every accessor falls back to the package's Unavailable implementation when
// the collaborator is not configured or cannot be reached, so a partially
// configured deployment still starts.
package clients

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/openai"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
)

// Provider owns the lazily created clients. It is safe for concurrent use.
type Provider struct {
	cfg     *config.PlatformConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger

	llmOnce sync.Once
	llm     *openai.Provider
	llmErr  error

	whOnce sync.Once
	wh     warehouse.Warehouse
	pg     *warehouse.Postgres

	natsOnce sync.Once
	nc       *nats.Conn
	bus      *messaging.Bus
	store    storage.ObjectStore

	retrOnce  sync.Once
	retriever *retrieval.Retriever
	milvus    *retrieval.MilvusIndex

	cpOnce sync.Once
	cp     controlplane.ControlPlane

	signerOnce sync.Once
	signer     *storage.Signer
	signerErr  error
}

// NewProvider returns a Provider; nothing is dialled until first use.
func NewProvider(cfg *config.PlatformConfig, m *metrics.Metrics, log zerolog.Logger) *Provider {
	return &Provider{cfg: cfg, metrics: m, logger: logger.WithComponent(log, "clients")}
}

// Config returns the configuration the provider was built with.
func (p *Provider) Config() *config.PlatformConfig { return p.cfg }

// LLM returns the OpenAI-compatible reasoning engine. It is the only
// collaborator without a fallback: agents cannot run without it.
func (p *Provider) LLM() (shared.LLMProvider, error) {
	p.llmOnce.Do(func() {
		p.llm, p.llmErr = openai.NewProvider(openai.Config{
			APIKey:  p.cfg.LLM.APIKey,
			BaseURL: p.cfg.LLM.BaseURL,
		})
	})
	if p.llmErr != nil {
		return nil, p.llmErr
	}
	return p.llm, nil
}

// CompletionOptions are the request defaults shared by every agent.
func (p *Provider) CompletionOptions() shared.CompletionOptions {
	return shared.CompletionOptions{
		Model:       p.cfg.LLM.Model,
		Temperature: p.cfg.LLM.Temperature,
		MaxTokens:   p.cfg.LLM.MaxTokens,
	}
}

// Warehouse returns the Postgres warehouse, or Unavailable without a DSN.
func (p *Provider) Warehouse(ctx context.Context) warehouse.Warehouse {
	p.whOnce.Do(func() {
		p.wh = warehouse.Unavailable{}
		dsn := strings.TrimSpace(p.cfg.Warehouse.DSN)
		if dsn == "" {
			p.logger.Warn().Msg("No warehouse DSN configured, warehouse calls will fail")
			return
		}
		pg, err := warehouse.NewPostgres(ctx, dsn, p.cfg.Dataset, logger.WithComponent(p.logger, "warehouse"))
		if err != nil {
			p.logger.Error().Err(err).Msg("Warehouse unavailable")
			return
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("Warehouse schema check failed")
		}
		p.pg, p.wh = pg, pg
	})
	return p.wh
}

func (p *Provider) connectNATS(ctx context.Context) {
	p.natsOnce.Do(func() {
		p.store = storage.Unavailable{}
		url := strings.TrimSpace(p.cfg.Messaging.NATSURL)
		if url == "" {
			p.logger.Warn().Msg("No NATS URL configured, messaging and object storage disabled")
			return
		}
		log := logger.WithComponent(p.logger, "nats")
		nc, js, err := messaging.Connect(url, log)
		if err != nil {
			p.logger.Error().Err(err).Msg("NATS unavailable")
			return
		}
		bus, err := messaging.NewBus(ctx, nc, js, p.cfg.Messaging.Stream, p.metrics, log)
		if err != nil {
			p.logger.Error().Err(err).Msg("Job stream unavailable")
			nc.Close()
			return
		}
		p.nc, p.bus = nc, bus
		p.store = storage.NewNATSObjectStore(js, logger.WithComponent(p.logger, "storage"))
	})
}

// Bus returns the NATS bus, or nil when messaging is not available.
func (p *Provider) Bus(ctx context.Context) *messaging.Bus {
	p.connectNATS(ctx)
	return p.bus
}

// Publisher returns the broadcast publisher.
func (p *Provider) Publisher(ctx context.Context) messaging.Publisher {
	if bus := p.Bus(ctx); bus != nil {
		return bus
	}
	return messaging.Unavailable{}
}

// Jobs returns the durable job submitter.
func (p *Provider) Jobs(ctx context.Context) messaging.JobSubmitter {
	if bus := p.Bus(ctx); bus != nil {
		return bus
	}
	return messaging.Unavailable{}
}

// ObjectStore returns the JetStream object store.
func (p *Provider) ObjectStore(ctx context.Context) storage.ObjectStore {
	p.connectNATS(ctx)
	return p.store
}

// Retriever returns the document retriever. Without Milvus or an embedding
// client it still answers, with the inline configuration error.
func (p *Provider) Retriever(ctx context.Context) *retrieval.Retriever {
	p.retrOnce.Do(func() {
		log := logger.WithComponent(p.logger, "retrieval")
		var (
			embedder retrieval.Embedder
			index    retrieval.Index
		)

		if llm, err := p.LLM(); err == nil {
			if op, ok := llm.(*openai.Provider); ok {
				embedder = retrieval.NewOpenAIEmbedder(op.Client(), p.cfg.LLM.EmbeddingModel)
			}
		}

		addr := strings.TrimSpace(p.cfg.Retrieval.Address)
		if addr == "" {
			p.logger.Warn().Msg("No Milvus address configured, document retrieval disabled")
		} else {
			mi, err := retrieval.NewMilvusIndex(ctx, addr, p.cfg.Retrieval.Collection, p.cfg.Retrieval.Dimension)
			if err != nil {
				p.logger.Error().Err(err).Msg("Vector index unavailable")
			} else {
				if err := mi.EnsureCollection(ctx); err != nil {
					p.logger.Warn().Err(err).Msg("Vector collection check failed")
				}
				p.milvus, index = mi, mi
			}
		}

		p.retriever = retrieval.NewRetriever(embedder, index, p.cfg.Retrieval.TopK, log)
	})
	return p.retriever
}

// ControlPlane returns the Kubernetes control plane, or Unavailable when no
// cluster can be reached.
func (p *Provider) ControlPlane() controlplane.ControlPlane {
	p.cpOnce.Do(func() {
		p.cp = controlplane.Unavailable{}
		cs, err := controlplane.NewClientset(p.cfg.ControlPlane)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Control plane unavailable, containment and remediation will fail")
			return
		}
		p.cp = controlplane.NewKubernetes(cs, p.cfg.ControlPlane, logger.WithComponent(p.logger, "controlplane"))
	})
	return p.cp
}

// Signer returns the download link signer. Without a configured secret a
// random one is generated, so links do not survive a restart.
func (p *Provider) Signer() (*storage.Signer, error) {
	p.signerOnce.Do(func() {
		secret := []byte(p.cfg.Server.SigningSecret)
		if len(secret) == 0 {
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				p.signerErr = fmt.Errorf("generate signing secret: %w", err)
				return
			}
			p.logger.Warn().Msg("No signing secret configured, using a per-process secret")
		}
		p.signer, p.signerErr = storage.NewSigner(secret, p.cfg.Server.PublicURL)
	})
	return p.signer, p.signerErr
}

// Close releases every client that was opened.
func (p *Provider) Close() {
	if p.pg != nil {
		p.pg.Close()
	}
	if p.milvus != nil {
		if err := p.milvus.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Closing vector index")
		}
	}
	if p.bus != nil {
		if err := p.bus.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Closing NATS bus")
		}
	} else if p.nc != nil {
		p.nc.Close()
	}
}
