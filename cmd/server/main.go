package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/api/server"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/app"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/clients"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/pipeline"
)

func loadConfig() (*config.PlatformConfig, error) {
	if path := os.Getenv("CYBERGUARD_CONFIG"); path != "" {
		return config.LoadConfigFromFile(path)
	}
	return config.Load()
}

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		boot.Fatal().Err(err).Msg("Failed to load config")
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		boot.Fatal().Err(err).Msg("Failed to create logger")
	}
	log.Info().Msg("Starting agent server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	provider := clients.NewProvider(cfg, m, log)
	defer provider.Close()

	collab, err := app.FromProvider(ctx, provider, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve clients")
	}
	a, err := app.Build(cfg, collab, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build agents")
	}

	if bus := provider.Bus(ctx); bus != nil {
		workerLog := logger.WithComponent(log, "pipeline")
		scheduler := pipeline.NewScheduler(ctx, bus, workerLog)
		processor := pipeline.NewProcessor(pipeline.ProcessorConfig{
			Store:     provider.ObjectStore(ctx),
			Indexer:   provider.Retriever(ctx),
			Scheduler: scheduler,
			Intel:     provider.Warehouse(ctx),
			Trainer:   bus,
			Bucket:    cfg.DataStoreBucket,
			Logger:    workerLog,
		})
		worker, err := pipeline.NewWorker(ctx, bus.JetStream(), bus.Stream(), processor, workerLog)
		if err != nil {
			log.Error().Err(err).Msg("Pipeline worker disabled")
		} else {
			scheduler.Start()
			go worker.Run(ctx)
		}
	}

	srv := server.NewServer(server.Config{Address: cfg.Server.Addr}, a, logger.WithComponent(log, "http"))
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
		stop()
		provider.Close()
		os.Exit(1)
	}
}
