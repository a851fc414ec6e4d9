package storage

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_documents/internal/config"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func TestNewObjectStore_Mock(t *testing.T) {
	cfg := &config.Config{
		StorageMode:    config.StorageModeMock,
		StorageBucket:  "incident-documents",
		StorageTimeout: time.Second,
	}

	store, err := NewObjectStore(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	probe := store.Probe(context.Background())
	assert.Equal(t, models.StatusOK, probe.Status)
	assert.Equal(t, BackendMemory, probe.Backend)
	assert.Equal(t, "incident-documents", probe.Bucket)

	// Хранилище обернуто Guard
	_, guarded := store.(*guardedStore)
	assert.True(t, guarded)

	key := Namespace(uuid.New()) + "20240101_120000_x_a.txt"
	n, err := store.Put(context.Background(), key, []byte("abc"), ObjectMeta{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestNewObjectStore_Errors(t *testing.T) {
	testCases := []struct {
		name string
		cfg  *config.Config
	}{
		{
			name: "unknown mode",
			cfg:  &config.Config{StorageMode: "tape", StorageTimeout: time.Second},
		},
		{
			name: "unknown provider",
			cfg:  &config.Config{StorageMode: config.StorageModeDurable, StorageProvider: "gcs", StorageTimeout: time.Second},
		},
		{
			name: "minio without endpoint",
			cfg: &config.Config{
				StorageMode:     config.StorageModeDurable,
				StorageProvider: config.StorageProviderMinio,
				StorageBucket:   "b",
				StorageTimeout:  time.Second,
			},
		},
		{
			name: "malformed connection string",
			cfg: &config.Config{
				StorageMode:             config.StorageModeDurable,
				StorageProvider:         config.StorageProviderMinio,
				StorageConnectionString: "ftp://host",
				StorageBucket:           "b",
				StorageTimeout:          time.Second,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewObjectStore(context.Background(), tc.cfg, quietLogger())

			assert.Error(t, err)
			assert.Nil(t, store)
		})
	}
}

func TestNewObjectStore_MinioStaticKeys(t *testing.T) {
	cfg := &config.Config{
		StorageMode:      config.StorageModeDurable,
		StorageProvider:  config.StorageProviderMinio,
		StorageEndpoint:  "http://localhost:9000",
		StorageAccessKey: "minioadmin",
		StorageSecretKey: "minioadmin",
		StorageBucket:    "incident-documents",
		StorageTimeout:   time.Second,
	}

	// Клиент создается без обращения к сети
	store, err := NewObjectStore(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	guarded, ok := store.(*guardedStore)
	require.True(t, ok)
	_, isMinio := guarded.next.(*MinioStore)
	assert.True(t, isMinio)
}
