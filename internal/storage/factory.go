package storage

import (
	"context"
	"fmt"

	"github.com/shenikar/incident_documents/internal/config"
	"github.com/sirupsen/logrus"
)

// NewObjectStore выбирает реализацию хранилища по конфигурации.
// Выбор делается один раз при старте; остальной код видит только ObjectStore.
func NewObjectStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (ObjectStore, error) {
	var (
		backend ObjectStore
		err     error
	)

	switch cfg.StorageMode {
	case config.StorageModeMock:
		logger.Warn("Object storage runs in mock mode, files are kept in memory only")
		backend = NewMemoryStore(cfg.StorageBucket)
	case config.StorageModeDurable:
		switch cfg.StorageProvider {
		case config.StorageProviderMinio:
			backend, err = NewMinioStore(cfg, logger)
		case config.StorageProviderS3:
			backend, err = NewS3Store(ctx, cfg, logger)
		default:
			return nil, fmt.Errorf("unsupported storage provider: %s (supported: minio, s3)", cfg.StorageProvider)
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s (supported: mock, durable)", cfg.StorageMode)
	}

	return Guard(backend, cfg.StorageTimeout, cfg.StorageMaxRetries, logger), nil
}
