package storage

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

const (
	collaborator      = "object store"
	contentTypeHeader = "Content-Type"
)

// NATSObjectStore maps buckets onto JetStream object stores, creating them
// on first write.
type NATSObjectStore struct {
	js     jetstream.JetStream
	logger zerolog.Logger

	mu      sync.Mutex
	buckets map[string]jetstream.ObjectStore
}

// NewNATSObjectStore wraps a JetStream context.
func NewNATSObjectStore(js jetstream.JetStream, log zerolog.Logger) *NATSObjectStore {
	return &NATSObjectStore{
		js:      js,
		logger:  log,
		buckets: make(map[string]jetstream.ObjectStore),
	}
}

func (s *NATSObjectStore) bucket(ctx context.Context, name string, create bool) (jetstream.ObjectStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.buckets[name]; ok {
		return store, nil
	}

	store, err := s.js.ObjectStore(ctx, name)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		if !create {
			return nil, &models.NotFoundError{Kind: "bucket", ID: name}
		}
		store, err = s.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      name,
			Description: "cyberguardian " + name,
		})
		if err == nil {
			s.logger.Info().Str("bucket", name).Msg("created object store bucket")
		}
	}
	if err != nil {
		return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "open bucket " + name, Err: err}
	}

	s.buckets[name] = store
	return store, nil
}

func (s *NATSObjectStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	store, err := s.bucket(ctx, bucket, true)
	if err != nil {
		return "", err
	}

	meta := jetstream.ObjectMeta{
		Name:    path,
		Headers: nats.Header{contentTypeHeader: []string{contentType}},
	}
	if _, err := store.Put(ctx, meta, bytes.NewReader(data)); err != nil {
		return "", &models.ExternalCallError{Collaborator: collaborator, Op: "upload " + path, Err: err}
	}

	uri := URI(bucket, path)
	s.logger.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("object uploaded")
	return uri, nil
}

func (s *NATSObjectStore) Download(ctx context.Context, bucket, path string) (Object, error) {
	store, err := s.bucket(ctx, bucket, false)
	if err != nil {
		return Object{}, err
	}

	info, err := store.GetInfo(ctx, path)
	if err != nil {
		return Object{}, objectErr("stat "+path, bucket, path, err)
	}
	data, err := store.GetBytes(ctx, path)
	if err != nil {
		return Object{}, objectErr("download "+path, bucket, path, err)
	}

	obj := Object{Data: data, ContentType: "application/octet-stream"}
	if info.Headers != nil {
		if ct := info.Headers.Get(contentTypeHeader); ct != "" {
			obj.ContentType = ct
		}
	}
	return obj, nil
}

func (s *NATSObjectStore) Restore(ctx context.Context, bucket, path string) (string, error) {
	obj, err := s.Download(ctx, bucket, BackupPrefix+path)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, bucket, RestoredPrefix+path, obj.Data, obj.ContentType)
}

func objectErr(op, bucket, path string, err error) error {
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return &models.NotFoundError{Kind: "object", ID: URI(bucket, path)}
	}
	return &models.ExternalCallError{Collaborator: collaborator, Op: op, Err: err}
}
