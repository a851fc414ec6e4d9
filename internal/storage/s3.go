package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/shenikar/incident_documents/internal/config"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/sirupsen/logrus"
)

const BackendS3 = "s3"

// S3Store - долговременное хранилище на AWS S3 (или совместимом сервисе с BaseEndpoint)
type S3Store struct {
	client *s3.Client
	bucket string
	region string
	logger *logrus.Logger

	mu          sync.Mutex
	bucketReady bool
}

var _ ObjectStore = (*S3Store)(nil)

func NewS3Store(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*S3Store, error) {
	settings, err := resolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(settings.Region)}
	// без явных ключей работает стандартная цепочка AWS (env, профиль, роль)
	if settings.Kind != credsAmbient {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKey, settings.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if endpoint := settings.URL(); endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	logger.WithFields(logrus.Fields{
		"endpoint":    settings.URL(),
		"region":      settings.Region,
		"bucket":      cfg.StorageBucket,
		"credentials": settings.Kind,
	}).Info("S3 storage client configured")

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.StorageBucket,
		region: settings.Region,
		logger: logger,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		s.bucketReady = true
		return nil
	}
	var missing *types.NotFound
	if !errors.As(err, &missing) {
		return s.normalize("ensure bucket", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 не принимает LocationConstraint
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if !errors.As(err, &owned) && !errors.As(err, &exists) {
			return s.normalize("create bucket", s.bucket, err)
		}
	} else {
		s.logger.WithField("bucket", s.bucket).Info("Created storage bucket")
	}
	s.bucketReady = true
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, meta ObjectMeta) (int64, error) {
	if key == "" {
		return 0, &models.StoreError{Op: "put", Err: errEmptyKey}
	}
	if err := s.ensureBucket(ctx); err != nil {
		return 0, err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(meta.ContentType),
		Metadata:      meta.Tags(),
	})
	if err != nil {
		return 0, s.normalize("put", key, err)
	}
	return int64(len(data)), nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.normalize("get", key, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return nil
	}
	if err = s.normalize("delete", key, err); errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

func (s *S3Store) Probe(ctx context.Context) models.ProbeResult {
	result := models.ProbeResult{Status: models.StatusOK, Backend: BackendS3, Bucket: s.bucket}

	_, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noBucket) {
			result.Detail = "bucket will be created on first upload"
			return result
		}
		result.Status = models.StatusError
		result.Detail = s.normalize("list", s.bucket, err).Error()
	}
	return result
}

// normalize переводит ошибки AWS SDK в таксономию шлюза
func (s *S3Store) normalize(op, key string, err error) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return notFound(key)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			if op == "get" || op == "delete" {
				return notFound(key)
			}
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return &models.StoreError{Op: op, Key: key, Retryable: true, Err: err}
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= http.StatusInternalServerError {
		return &models.StoreError{Op: op, Key: key, Retryable: true, Err: err}
	}
	return storeError(op, key, err)
}
