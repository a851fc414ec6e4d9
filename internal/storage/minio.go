package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/shenikar/incident_documents/internal/config"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/sirupsen/logrus"
)

const BackendMinio = "minio"

// MinioStore - долговременное хранилище на любом S3-совместимом сервисе через minio-go
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	logger *logrus.Logger

	mu          sync.Mutex
	bucketReady bool
}

var _ ObjectStore = (*MinioStore)(nil)

// NewMinioStore создает клиента. Бакет проверяется лениво при первой записи.
func NewMinioStore(cfg *config.Config, logger *logrus.Logger) (*MinioStore, error) {
	settings, err := resolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}
	if settings.Endpoint == "" {
		return nil, fmt.Errorf("minio storage requires STORAGE_ENDPOINT or STORAGE_CONNECTION_STRING")
	}

	var creds *credentials.Credentials
	if settings.Kind == credsAmbient {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, "")
	}

	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: settings.Secure,
		Region: settings.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"endpoint":    settings.Endpoint,
		"bucket":      cfg.StorageBucket,
		"credentials": settings.Kind,
	}).Info("MinIO storage client configured")

	return &MinioStore{
		client: client,
		bucket: cfg.StorageBucket,
		region: settings.Region,
		logger: logger,
	}, nil
}

// ensureBucket идемпотентно создает бакет; "уже существует" не считается ошибкой
func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return s.normalize("ensure bucket", s.bucket, err)
	}
	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		if err != nil {
			code := minio.ToErrorResponse(err).Code
			if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return s.normalize("create bucket", s.bucket, err)
			}
		} else {
			s.logger.WithField("bucket", s.bucket).Info("Created storage bucket")
		}
	}
	s.bucketReady = true
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, meta ObjectMeta) (int64, error) {
	if key == "" {
		return 0, &models.StoreError{Op: "put", Err: errEmptyKey}
	}
	if err := s.ensureBucket(ctx); err != nil {
		return 0, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		UserMetadata: meta.Tags(),
	})
	if err != nil {
		return 0, s.normalize("put", key, err)
	}
	if err := s.verifySize(ctx, key, info.Size, int64(len(data))); err != nil {
		return 0, err
	}
	return info.Size, nil
}

// verifySize удаляет объект, записанный не полностью: после ошибки Put
// в бакете не должно остаться ничего
func (s *MinioStore) verifySize(ctx context.Context, key string, stored, expected int64) error {
	if stored == expected {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to remove partially stored object")
	}
	return &models.StoreError{Op: "put", Key: key, Retryable: true,
		Err: fmt.Errorf("stored %d bytes, expected %d", stored, expected)}
}

func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.normalize("get", key, err)
	}
	// GetObject ленивый: отсутствие ключа проявляется только на Stat/Read
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s.normalize("get", key, err)
	}
	return obj, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NoSuchBucket" {
		return nil
	}
	return s.normalize("delete", key, err)
}

func (s *MinioStore) Probe(ctx context.Context) models.ProbeResult {
	result := models.ProbeResult{Status: models.StatusOK, Backend: BackendMinio, Bucket: s.bucket}

	// отмена останавливает горутину листинга после первого элемента
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{MaxKeys: 1}) {
		if obj.Err != nil {
			if minio.ToErrorResponse(obj.Err).Code == "NoSuchBucket" {
				result.Detail = "bucket will be created on first upload"
				break
			}
			result.Status = models.StatusError
			result.Detail = s.normalize("list", s.bucket, obj.Err).Error()
		}
		break
	}
	return result
}

// normalize переводит ошибки minio в таксономию шлюза
func (s *MinioStore) normalize(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || (op == "get" && resp.StatusCode == http.StatusNotFound):
		return notFound(key)
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return &models.StoreError{Op: op, Key: key, Retryable: true, Err: err}
	}
	return storeError(op, key, err)
}
