// Package messaging carries agent broadcasts over core NATS and background
// jobs over a JetStream stream.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
)

// Subjects.
const (
	SubjectAgentUpdate = "cyberguardian.agents.update"
	SubjectJobs        = "cyberguardian.jobs.>"
	SubjectIngestJob   = "cyberguardian.jobs.ingest"
	SubjectTrainJob    = "cyberguardian.jobs.train"
)

// SubjectTrainerHandoff is consumed by the model trainer outside this process.
const SubjectTrainerHandoff = "cyberguardian.training.requests"

// Publisher fans a message out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// JobSubmitter durably enqueues a job.
type JobSubmitter interface {
	Submit(ctx context.Context, subject string, v any) error
}

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("messaging not configured")

// Unavailable is used when no NATS URL is configured.
type Unavailable struct{}

func (Unavailable) Publish(context.Context, string, any) error { return ErrNotConfigured }

func (Unavailable) Submit(context.Context, string, any) error { return ErrNotConfigured }

// Connect dials NATS and returns the connection with its JetStream context.
func Connect(url string, log zerolog.Logger, opts ...nats.Option) (*nats.Conn, jetstream.JetStream, error) {
	opts = append([]nats.Option{
		nats.Name("cyberguardian"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// Bus implements Publisher and JobSubmitter over one NATS connection.
type Bus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewBus ensures the job stream exists and returns a Bus.
func NewBus(ctx context.Context, nc *nats.Conn, js jetstream.JetStream, stream string, m *metrics.Metrics, log zerolog.Logger) (*Bus, error) {
	if _, err := js.Stream(ctx, stream); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     stream,
			Subjects: []string{SubjectJobs},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create or get stream %s: %w", stream, err)
		}
		log.Info().Str("stream", stream).Msg("created NATS JetStream stream")
	}

	return &Bus{nc: nc, js: js, stream: stream, metrics: m, logger: log}, nil
}

// JetStream exposes the JetStream context for consumers.
func (b *Bus) JetStream() jetstream.JetStream { return b.js }

// Stream is the job stream name.
func (b *Bus) Stream() string { return b.stream }

func (b *Bus) Publish(_ context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", subject, err)
	}
	if err := b.nc.Publish(subject, data); err != nil {
		b.metrics.IncrementPublishErrors()
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (b *Bus) Submit(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal job for %s: %w", subject, err)
	}
	ack, err := b.js.Publish(ctx, subject, data)
	if err != nil {
		b.metrics.IncrementPublishErrors()
		return fmt.Errorf("failed to submit job to %s: %w", subject, err)
	}
	b.logger.Debug().Str("subject", subject).Uint64("seq", ack.Sequence).Msg("job submitted")
	return nil
}

// Close drains the connection.
func (b *Bus) Close() error {
	return b.nc.Drain()
}
