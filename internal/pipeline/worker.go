package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

const (
	defaultConsumer   = "cyberguardian-pipeline"
	defaultMaxPull    = 10
	defaultPullExpiry = 30 * time.Second
	defaultMaxDeliver = 3
)

// Worker pulls jobs from the job stream and hands them to a Processor.
type Worker struct {
	consumer  jetstream.Consumer
	processor *Processor
	logger    zerolog.Logger
}

// NewWorker creates or retrieves the durable pull consumer on stream.
func NewWorker(ctx context.Context, js jetstream.JetStream, stream string, processor *Processor, log zerolog.Logger) (*Worker, error) {
	consumer, err := js.Consumer(ctx, stream, defaultConsumer)
	if err != nil {
		consumer, err = js.CreateConsumer(ctx, stream, jetstream.ConsumerConfig{
			Durable:       defaultConsumer,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       5 * time.Minute,
			MaxDeliver:    defaultMaxDeliver,
			FilterSubject: messaging.SubjectJobs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	log.Info().Str("stream", stream).Str("consumer", defaultConsumer).Msg("Pull consumer ready")
	return &Worker{consumer: consumer, processor: processor, logger: log}, nil
}

// Run fetches and processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping pipeline worker")
			return
		default:
		}

		batch, err := w.consumer.Fetch(defaultMaxPull, jetstream.FetchMaxWait(defaultPullExpiry))
		if err != nil {
			w.logger.Warn().Err(err).Msg("Failed to fetch jobs")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for msg := range batch.Messages() {
			w.handle(ctx, msg)
		}
		if err := batch.Error(); err != nil && ctx.Err() == nil {
			w.logger.Debug().Err(err).Msg("Fetch finished with error")
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg jetstream.Msg) {
	err := w.Dispatch(ctx, msg.Subject(), msg.Data())
	if err == nil {
		_ = msg.Ack()
		return
	}

	w.logger.Error().Err(err).Str("subject", msg.Subject()).Msg("Job failed")
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		_ = msg.Term()
		return
	}
	if meta, metaErr := msg.Metadata(); metaErr == nil && meta.NumDelivered >= defaultMaxDeliver {
		_ = msg.Term()
		return
	}
	_ = msg.Nak()
}

// Dispatch routes a job payload by subject.
func (w *Worker) Dispatch(ctx context.Context, subject string, data []byte) error {
	switch subject {
	case messaging.SubjectIngestJob:
		return w.processor.ProcessIngest(ctx, data)
	case messaging.SubjectTrainJob:
		return w.processor.ProcessTrain(ctx, data)
	default:
		return fmt.Errorf("no handler for subject %s", subject)
	}
}
