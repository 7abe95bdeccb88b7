// Package app assembles the capability services, the specialized agents and
// the coordinator from a set of collaborators.
package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/clients"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/feeds"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/main-agents/coordinator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/policies"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/containment"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/detector"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/hunter"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/intelligence"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/investigator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/remediator"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/sub-agents/reporter"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/providers/shared"
	containmentsvc "github.com/Fangmbeng/CyberGuard-AI-Agent/services/containment"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/detection"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/hunting"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/ingestion"
	intelsvc "github.com/Fangmbeng/CyberGuard-AI-Agent/services/intelligence"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/investigation"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/remediation"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/reporting"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/scanner"
)

// Collaborators are the external dependencies of the platform. Tests supply
// fakes; production code uses FromProvider.
type Collaborators struct {
	LLM          shared.LLMProvider
	Options      shared.CompletionOptions
	Warehouse    warehouse.Warehouse
	ControlPlane controlplane.ControlPlane
	Store        storage.ObjectStore
	Search       retrieval.Searcher
	Signer       *storage.Signer
	Publisher    messaging.Publisher
	Jobs         messaging.JobSubmitter
	Sources      []feeds.Source
}

// FromProvider resolves every collaborator from p. A missing reasoning
// engine leaves LLM nil, which NewServices accepts and Build rejects.
// Broadcasts are published only when NATS is connected.
func FromProvider(ctx context.Context, p *clients.Provider, log zerolog.Logger) (Collaborators, error) {
	llm, err := p.LLM()
	if err != nil {
		log.Warn().Err(err).Msg("Reasoning engine not configured")
	}
	signer, err := p.Signer()
	if err != nil {
		return Collaborators{}, err
	}
	cfg := p.Config()
	c := Collaborators{
		LLM:          llm,
		Options:      p.CompletionOptions(),
		Warehouse:    p.Warehouse(ctx),
		ControlPlane: p.ControlPlane(),
		Store:        p.ObjectStore(ctx),
		Search:       p.Retriever(ctx),
		Signer:       signer,
		Jobs:         p.Jobs(ctx),
		Sources:      feeds.NewSources(cfg.Feeds, logger.WithComponent(log, "feeds")),
	}
	if bus := p.Bus(ctx); bus != nil {
		c.Publisher = bus
	}
	return c, nil
}

// Services are the capability services behind the agents.
type Services struct {
	Detection     *detection.Service
	Hunting       *hunting.Service
	Investigation *investigation.Service
	Containment   *containmentsvc.Service
	Remediation   *remediation.Service
	Reporting     *reporting.Service
	Intelligence  *intelsvc.Service
	Ingestion     *ingestion.Service
}

// App is the assembled platform.
type App struct {
	Config      *config.PlatformConfig
	Services    Services
	Agents      *agents.AgentRegistry
	Coordinator *coordinator.Coordinator
	Store       storage.ObjectStore
	Signer      *storage.Signer
	Metrics     *metrics.Metrics
}

// NewServices builds the capability services. It needs no reasoning engine,
// so the CLI feed commands use it directly.
func NewServices(cfg *config.PlatformConfig, c Collaborators, m *metrics.Metrics, log zerolog.Logger) (Services, error) {
	severity, err := models.ParseSeverity(cfg.Detection.Severity)
	if err != nil {
		return Services{}, err
	}
	sc := scanner.New(c.ControlPlane, logger.WithComponent(log, "scanner"))

	var signer reporting.URLSigner
	if c.Signer != nil {
		signer = c.Signer
	}
	reports, err := reporting.NewService(reporting.Config{
		Bucket:      cfg.ReportsBucket,
		DownloadTTL: cfg.Server.DownloadTTL,
	}, c.Warehouse, c.Search, c.Store, signer, logger.WithComponent(log, "reporting"))
	if err != nil {
		return Services{}, err
	}

	return Services{
		Detection:     detection.NewService(c.Warehouse, sc, severity, logger.WithComponent(log, "detection")),
		Hunting:       hunting.NewService(c.Warehouse, logger.WithComponent(log, "hunting")),
		Investigation: investigation.NewService(c.Warehouse, sc, nil, logger.WithComponent(log, "investigation")),
		Containment:   containmentsvc.NewService(c.ControlPlane, cfg.ControlPlane.DefaultZone, logger.WithComponent(log, "containment")),
		Remediation: remediation.NewService(c.ControlPlane, c.Store, cfg.ControlPlane.DefaultZone, cfg.IncidentBucket,
			logger.WithComponent(log, "remediation")),
		Reporting: reports,
		Intelligence: intelsvc.NewService(c.Sources, c.Warehouse, c.Jobs, m, cfg.Dataset, cfg.Location,
			logger.WithComponent(log, "intelligence")),
		Ingestion: ingestion.NewService(ingestion.Config{
			Bucket:      cfg.DataStoreBucket,
			DataStoreID: cfg.DataStoreID,
			Location:    cfg.DataStoreRegion,
		}, c.Sources, c.Store, c.Jobs, m, logger.WithComponent(log, "ingestion")),
	}, nil
}

// Build assembles services, agents and the coordinator.
func Build(cfg *config.PlatformConfig, c Collaborators, m *metrics.Metrics, log zerolog.Logger) (*App, error) {
	if c.LLM == nil {
		return nil, errors.New("reasoning engine is required: set CYBERGUARD_LLM_API_KEY or CYBERGUARD_LLM_BASE_URL")
	}
	svcs, err := NewServices(cfg, c, m, log)
	if err != nil {
		return nil, err
	}

	store := policies.NewStore(cfg.Agents.PolicyDir)
	settings := agents.Settings{
		Policies:      store,
		MaxIterations: cfg.Agents.MaxIterations,
		ToolTimeout:   cfg.Agents.ToolTimeout,
		Metrics:       m,
		Logger:        logger.WithComponent(log, "agents"),
	}

	registry := agents.NewAgentRegistry(c.LLM, c.Options, logger.WithComponent(log, "registry"))
	builders := []func() (*agents.ToolAgent, error){
		func() (*agents.ToolAgent, error) { return detector.New(svcs.Detection, c.Search, settings) },
		func() (*agents.ToolAgent, error) { return hunter.New(svcs.Hunting, c.Search, settings) },
		func() (*agents.ToolAgent, error) { return investigator.New(svcs.Investigation, c.Search, settings) },
		func() (*agents.ToolAgent, error) { return containment.New(svcs.Containment, c.Search, settings) },
		func() (*agents.ToolAgent, error) { return remediator.New(svcs.Remediation, c.Search, settings) },
		func() (*agents.ToolAgent, error) { return reporter.New(svcs.Reporting, c.Search, settings) },
		func() (*agents.ToolAgent, error) {
			return intelligence.New(svcs.Intelligence, svcs.Ingestion, c.Search, settings)
		},
	}
	for _, build := range builders {
		agent, err := build()
		if err != nil {
			return nil, err
		}
		if err := registry.Register(agent); err != nil {
			return nil, err
		}
	}

	policy, err := store.Load(coordinator.Name)
	if err != nil {
		return nil, err
	}
	coordLog := logger.WithComponent(log, "coordinator")
	coord, err := coordinator.New(coordinator.Config{
		Agents:     registry,
		Classifier: coordinator.NewLLMClassifier(c.LLM, c.Options, policy.Classifier, coordLog),
		Search:     c.Search,
		Publisher:  c.Publisher,
		Policy:     policy,
		Settings:   settings,
		Metrics:    m,
		Logger:     coordLog,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:      cfg,
		Services:    svcs,
		Agents:      registry,
		Coordinator: coord,
		Store:       c.Store,
		Signer:      c.Signer,
		Metrics:     m,
	}, nil
}
