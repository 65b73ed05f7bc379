package kb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrObjectNotFound = errors.New("kb: object not found")

// ObjectAttrs is the subset of object metadata the pipeline keys jobs on.
type ObjectAttrs struct {
	Etag string
	Size int64
}

// ObjectStore abstracts bucket access so the workers can run against an
// in-memory store in tests.
type ObjectStore interface {
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	Write(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Attrs(ctx context.Context, bucket, key string) (ObjectAttrs, error)
}

// GCSStore implements ObjectStore on Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
}

func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *GCSStore) Write(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *GCSStore) Attrs(ctx context.Context, bucket, key string) (ObjectAttrs, error) {
	attrs, err := s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ObjectAttrs{}, ErrObjectNotFound
		}
		return ObjectAttrs{}, fmt.Errorf("attrs gs://%s/%s: %w", bucket, key, err)
	}
	return ObjectAttrs{Etag: attrs.Etag, Size: attrs.Size}, nil
}

// MemoryObjects is an in-memory ObjectStore for tests.
type MemoryObjects struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: make(map[string][]byte)}
}

func objectKey(bucket, key string) string { return bucket + "/" + key }

func (m *MemoryObjects) Read(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objectKey(bucket, key)]
	if !ok {
		return nil, ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryObjects) Write(_ context.Context, bucket, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[objectKey(bucket, key)] = stored
	return nil
}

func (m *MemoryObjects) Attrs(_ context.Context, bucket, key string) (ObjectAttrs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objectKey(bucket, key)]
	if !ok {
		return ObjectAttrs{}, ErrObjectNotFound
	}
	return ObjectAttrs{Etag: fmt.Sprintf("mem-%d", len(data)), Size: int64(len(data))}, nil
}

// Keys returns every stored bucket/key path, sorted. Test helper.
func (m *MemoryObjects) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
