// Package ingestion exports threat feeds to the data-store bucket and
// submits the pipeline that indexes them for document retrieval.
package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/feeds"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/pipeline"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
)

// SubmittedMessage is returned once a pipeline request is enqueued.
const SubmittedMessage = "Ingestion pipeline submitted"

const jsonlContentType = "application/x-ndjson"

var pipelineName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,127}$`)

// Config locates the exported feed files.
type Config struct {
	Bucket      string
	DataStoreID string
	Location    string
}

// Service writes feed exports and submits ingestion jobs.
type Service struct {
	cfg     Config
	sources []feeds.Source
	store   storage.ObjectStore
	jobs    messaging.JobSubmitter
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
	logger  zerolog.Logger
}

func NewService(cfg Config, sources []feeds.Source, store storage.ObjectStore, jobs messaging.JobSubmitter, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		sources: sources,
		store:   store,
		jobs:    jobs,
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  log,
	}
}

// SubmitPipeline enqueues an ingestion run over both feed files. With a cron
// schedule the worker registers the schedule and re-submits the run on it.
func (s *Service) SubmitPipeline(ctx context.Context, cronSchedule, name string) (string, error) {
	uris := []string{
		storage.URI(s.cfg.Bucket, feeds.CVEFile),
		storage.URI(s.cfg.Bucket, feeds.RedditFile),
	}
	return s.submit(ctx, strings.TrimSpace(cronSchedule), name, uris)
}

// FetchAndIngest pulls every feed, uploads one JSONL file per feed and
// submits the pipeline over the uploaded files. A failing feed is skipped.
func (s *Service) FetchAndIngest(ctx context.Context) ([]string, error) {
	var uris []string
	for _, src := range s.sources {
		items, err := src.Fetch(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", src.Name()).Msg("Skipping unavailable feed")
			continue
		}
		s.metrics.AddFeedItems(src.Name(), len(items))

		data, err := feeds.EncodeJSONL(items)
		if err != nil {
			return uris, fmt.Errorf("encode %s feed: %w", src.Name(), err)
		}
		uri, err := s.store.Upload(ctx, s.cfg.Bucket, feeds.FileFor(src.Name()), data, jsonlContentType)
		if err != nil {
			return uris, &models.ExternalCallError{Collaborator: "storage", Op: "upload " + feeds.FileFor(src.Name()), Err: err}
		}
		s.logger.Info().Str("uri", uri).Int("items", len(items)).Msg("Threat feed uploaded")
		uris = append(uris, uri)
	}

	if len(uris) == 0 {
		return nil, fmt.Errorf("no threat feed could be fetched")
	}
	if _, err := s.submit(ctx, "", "", uris); err != nil {
		return uris, err
	}
	return uris, nil
}

func (s *Service) submit(ctx context.Context, cronSchedule, name string, uris []string) (string, error) {
	if name == "" {
		name = pipeline.DefaultName
	}
	if !pipelineName.MatchString(name) {
		return "", models.NewValidationError("pipeline_name", "must start with a letter and contain only letters, digits, '_' or '-'", name)
	}
	if cronSchedule != "" {
		if _, err := pipeline.ParseSchedule(cronSchedule); err != nil {
			return "", err
		}
	}

	req := pipeline.Request{
		ID:           "ingest-" + s.newID(),
		Name:         name,
		CronSchedule: cronSchedule,
		SourceURIs:   uris,
		DataStoreID:  s.cfg.DataStoreID,
		Location:     s.cfg.Location,
		SubmittedAt:  s.now().UTC(),
	}
	if err := s.jobs.Submit(ctx, messaging.SubjectIngestJob, req); err != nil {
		return "", &models.ExternalCallError{Collaborator: "messaging", Op: "submit ingestion pipeline", Err: err}
	}
	s.logger.Info().Str("pipeline", name).Str("id", req.ID).Str("schedule", cronSchedule).Msg("Ingestion pipeline submitted")
	return SubmittedMessage, nil
}
