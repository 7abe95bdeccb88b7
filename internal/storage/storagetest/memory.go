// Package storagetest provides an in-memory object store for tests.
package storagetest

import (
	"context"
	"sync"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
)

// Memory keeps objects per bucket. UploadErr and DownloadErr make the
// matching calls fail.
type Memory struct {
	mu      sync.Mutex
	objects map[string]map[string]storage.Object

	UploadErr   error
	DownloadErr error
}

var _ storage.ObjectStore = (*Memory)(nil)

func New() *Memory {
	return &Memory{objects: map[string]map[string]storage.Object{}}
}

// Put seeds an object without going through Upload.
func (m *Memory) Put(bucket, path string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(bucket, path, storage.Object{Data: append([]byte(nil), data...), ContentType: contentType})
}

func (m *Memory) put(bucket, path string, obj storage.Object) {
	if m.objects == nil {
		m.objects = map[string]map[string]storage.Object{}
	}
	if m.objects[bucket] == nil {
		m.objects[bucket] = map[string]storage.Object{}
	}
	m.objects[bucket][path] = obj
}

func (m *Memory) Upload(_ context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.put(bucket, path, storage.Object{Data: append([]byte(nil), data...), ContentType: contentType})
	return storage.URI(bucket, path), nil
}

func (m *Memory) Download(_ context.Context, bucket, path string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(bucket, path)
}

func (m *Memory) get(bucket, path string) (storage.Object, error) {
	if m.DownloadErr != nil {
		return storage.Object{}, m.DownloadErr
	}
	obj, ok := m.objects[bucket][path]
	if !ok {
		return storage.Object{}, &models.NotFoundError{Kind: "object", ID: storage.URI(bucket, path)}
	}
	return obj, nil
}

func (m *Memory) Restore(_ context.Context, bucket, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, err := m.get(bucket, storage.BackupPrefix+path)
	if err != nil {
		return "", err
	}
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.put(bucket, storage.RestoredPrefix+path, obj)
	return storage.URI(bucket, storage.RestoredPrefix+path), nil
}

// Has reports whether an object exists.
func (m *Memory) Has(bucket, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket][path]
	return ok
}
