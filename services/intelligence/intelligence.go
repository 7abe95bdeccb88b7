// Package intelligence aggregates external threat feeds into the threat
// intel table and launches model training jobs.
package intelligence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/feeds"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/pipeline"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
)

// Aggregation is the outcome of one AggregateFeeds call. A failing feed
// contributes no items and is reported in FeedErrors keyed by source name.
type Aggregation struct {
	Items      []models.ThreatIntel
	FeedErrors map[string]error
	PersistErr error
}

// Service fans in threat feeds and submits training jobs.
type Service struct {
	sources  []feeds.Source
	wh       warehouse.Warehouse
	jobs     messaging.JobSubmitter
	metrics  *metrics.Metrics
	dataset  string
	location string
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

func NewService(sources []feeds.Source, wh warehouse.Warehouse, jobs messaging.JobSubmitter, m *metrics.Metrics, dataset, location string, log zerolog.Logger) *Service {
	return &Service{
		sources:  sources,
		wh:       wh,
		jobs:     jobs,
		metrics:  m,
		dataset:  dataset,
		location: location,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   log,
	}
}

// AggregateFeeds fetches every source in order and persists the combined
// items. Feed and persistence failures are reported, never returned.
func (s *Service) AggregateFeeds(ctx context.Context) Aggregation {
	agg := Aggregation{Items: []models.ThreatIntel{}, FeedErrors: map[string]error{}}

	for _, src := range s.sources {
		items, err := src.Fetch(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", src.Name()).Msg("Threat feed unavailable")
			agg.FeedErrors[src.Name()] = err
			continue
		}
		s.metrics.AddFeedItems(src.Name(), len(items))
		agg.Items = append(agg.Items, items...)
	}

	if len(agg.Items) > 0 {
		if err := s.wh.InsertThreatIntel(ctx, agg.Items); err != nil {
			s.logger.Error().Err(err).Int("items", len(agg.Items)).Msg("Failed to persist threat intel")
			agg.PersistErr = err
		}
	}

	s.logger.Info().
		Int("items", len(agg.Items)).
		Int("failed_feeds", len(agg.FeedErrors)).
		Msg("Threat feeds aggregated")
	return agg
}

// TrainPredictionModel enqueues a training job over the threat intel table
// and returns without waiting for it.
func (s *Service) TrainPredictionModel(ctx context.Context) (string, error) {
	req := pipeline.TrainRequest{
		ID:          "train-" + s.newID(),
		Dataset:     s.dataset,
		Table:       warehouse.TableThreatIntel,
		Location:    s.location,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.jobs.Submit(ctx, messaging.SubjectTrainJob, req); err != nil {
		return "", &models.ExternalCallError{Collaborator: "messaging", Op: "submit training job", Err: err}
	}
	s.logger.Info().Str("job_id", req.ID).Str("dataset", req.Dataset).Msg("Training job submitted")
	return "Triggered training job " + req.ID, nil
}
