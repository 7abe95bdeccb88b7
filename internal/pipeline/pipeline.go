// Package pipeline runs the ingestion and training jobs submitted on the
// JetStream job stream.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/feeds"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
)

const (
	// DefaultName is the ingestion pipeline name used when none is given.
	DefaultName = "cyber_intel_ingest"

	trainSnapshotLimit = 10000
	snapshotDir        = "training"
	jsonlContentType   = "application/x-ndjson"
)

// Request asks the worker to index feed files into the retrieval store.
// A request with a CronSchedule registers a schedule that re-submits the
// request without it.
type Request struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CronSchedule string    `json:"cron_schedule,omitempty"`
	SourceURIs   []string  `json:"source_uris"`
	DataStoreID  string    `json:"data_store_id,omitempty"`
	Location     string    `json:"location,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// TrainRequest asks for a retrain of the anomaly prediction model.
type TrainRequest struct {
	ID          string    `json:"id"`
	Dataset     string    `json:"dataset"`
	Table       string    `json:"table"`
	Location    string    `json:"location,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TrainerHandoff is published on messaging.SubjectTrainerHandoff for the
// external trainer once the feature snapshot is written.
type TrainerHandoff struct {
	JobID       string    `json:"job_id"`
	Dataset     string    `json:"dataset"`
	Table       string    `json:"table"`
	Location    string    `json:"location,omitempty"`
	SnapshotURI string    `json:"snapshot_uri"`
	Records     int       `json:"records"`
	RequestedAt time.Time `json:"requested_at"`
}

// Indexer receives the parsed documents.
type Indexer interface {
	IndexDocuments(ctx context.Context, docs []retrieval.Document) error
}

// IntelSource supplies the threat intel rows a training snapshot is built from.
type IntelSource interface {
	QueryThreatIntel(ctx context.Context, filter warehouse.IntelFilter) ([]models.ThreatIntel, error)
}

// ProcessorConfig wires a Processor. Without a Scheduler, scheduled requests
// are rejected; without Intel or Trainer, so are training jobs.
type ProcessorConfig struct {
	Store     storage.ObjectStore
	Indexer   Indexer
	Scheduler *Scheduler
	Intel     IntelSource
	Trainer   messaging.Publisher
	// Bucket receives training snapshots.
	Bucket string
	Logger zerolog.Logger
}

// Processor executes one job payload.
type Processor struct {
	store     storage.ObjectStore
	indexer   Indexer
	scheduler *Scheduler
	intel     IntelSource
	trainer   messaging.Publisher
	bucket    string
	logger    zerolog.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		store:     cfg.Store,
		indexer:   cfg.Indexer,
		scheduler: cfg.Scheduler,
		intel:     cfg.Intel,
		trainer:   cfg.Trainer,
		bucket:    cfg.Bucket,
		logger:    cfg.Logger,
	}
}

// ProcessIngest downloads every source file and indexes its records.
func (p *Processor) ProcessIngest(ctx context.Context, data []byte) error {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode ingest request: %w", err)
	}

	if req.CronSchedule != "" {
		if p.scheduler == nil {
			return models.NewValidationError("cron_schedule", "scheduling is not enabled on this worker", req.CronSchedule)
		}
		next, err := p.scheduler.Register(req)
		if err != nil {
			return err
		}
		p.logger.Info().Str("pipeline", req.Name).Str("schedule", req.CronSchedule).Time("next_run", next).Msg("Ingestion schedule registered")
		return nil
	}

	var docs []retrieval.Document
	for _, uri := range req.SourceURIs {
		bucket, path, err := storage.ParseURI(uri)
		if err != nil {
			return err
		}
		obj, err := p.store.Download(ctx, bucket, path)
		if err != nil {
			return fmt.Errorf("download %s: %w", uri, err)
		}
		items, err := feeds.ReadJSONL(bytes.NewReader(obj.Data))
		if err != nil {
			return fmt.Errorf("parse %s: %w", uri, err)
		}
		for _, item := range items {
			docs = append(docs, retrieval.Document{
				Text:   item.Summary,
				Source: item.Source + ":" + item.ID,
			})
		}
	}

	if err := p.indexer.IndexDocuments(ctx, docs); err != nil {
		return fmt.Errorf("index documents: %w", err)
	}
	p.logger.Info().Str("pipeline", req.Name).Str("id", req.ID).Int("documents", len(docs)).Msg("Ingestion pipeline completed")
	return nil
}

// ProcessTrain snapshots the threat intel table into the object store and
// hands the snapshot to the external trainer.
func (p *Processor) ProcessTrain(ctx context.Context, data []byte) error {
	var req TrainRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode train request: %w", err)
	}
	if req.ID == "" {
		return models.NewValidationError("id", "is required", "")
	}
	if p.intel == nil || p.trainer == nil || p.store == nil {
		return models.NewValidationError("train_model", "training hand-off is not enabled on this worker", req.ID)
	}

	items, err := p.intel.QueryThreatIntel(ctx, warehouse.IntelFilter{Limit: trainSnapshotLimit})
	if err != nil {
		return &models.ExternalCallError{Collaborator: "warehouse", Op: "query " + req.Table, Err: err}
	}
	snapshot, err := feeds.EncodeJSONL(items)
	if err != nil {
		return fmt.Errorf("encode training snapshot: %w", err)
	}
	path := fmt.Sprintf("%s/%s.jsonl", snapshotDir, req.ID)
	uri, err := p.store.Upload(ctx, p.bucket, path, snapshot, jsonlContentType)
	if err != nil {
		return &models.ExternalCallError{Collaborator: "storage", Op: "upload " + path, Err: err}
	}

	handoff := TrainerHandoff{
		JobID:       req.ID,
		Dataset:     req.Dataset,
		Table:       req.Table,
		Location:    req.Location,
		SnapshotURI: uri,
		Records:     len(items),
		RequestedAt: req.SubmittedAt,
	}
	if err := p.trainer.Publish(ctx, messaging.SubjectTrainerHandoff, handoff); err != nil {
		return &models.ExternalCallError{Collaborator: "messaging", Op: "hand off training job", Err: err}
	}
	p.logger.Info().Str("id", req.ID).Str("snapshot", uri).Int("records", len(items)).Msg("Training job handed off")
	return nil
}
