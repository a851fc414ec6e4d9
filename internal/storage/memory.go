package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/shenikar/incident_documents/internal/models"
)

const BackendMemory = "mock"

type memoryObject struct {
	data []byte
	meta ObjectMeta
}

// MemoryStore - хранилище в памяти для тестов и режима STORAGE_MODE=mock.
// Сетевого I/O нет, но контракт тот же: размер равен длине входа,
// Get отсутствующего ключа возвращает ErrNotFound, Delete идемпотентен.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	bucket  string
}

var _ ObjectStore = (*MemoryStore)(nil)

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		bucket:  bucket,
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, meta ObjectMeta) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &models.StoreError{Op: "put", Key: key, Retryable: true, Err: err}
	}
	if key == "" {
		return 0, &models.StoreError{Op: "put", Err: errEmptyKey}
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[key] = memoryObject{data: buf, meta: meta}
	s.mu.Unlock()

	return int64(len(buf)), nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.StoreError{Op: "get", Key: key, Retryable: true, Err: err}
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &models.StoreError{Op: "delete", Key: key, Retryable: true, Err: err}
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Probe(ctx context.Context) models.ProbeResult {
	return models.ProbeResult{Status: models.StatusOK, Backend: BackendMemory, Bucket: s.bucket}
}

// Keys возвращает отсортированный список ключей
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Meta возвращает метаданные объекта
func (s *MemoryStore) Meta(key string) (ObjectMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.meta, ok
}
