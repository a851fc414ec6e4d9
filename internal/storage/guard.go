package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/shenikar/incident_documents/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultRetryDelay = 200 * time.Millisecond

// guardedStore ограничивает каждый вызов хранилища таймаутом и повторяет
// операции, завершившиеся временной ошибкой. Повтор безопасен: Put
// перезаписывает объект по тому же ключу, Delete идемпотентен.
type guardedStore struct {
	next       ObjectStore
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	logger     *logrus.Logger
}

// Guard оборачивает store таймаутом и повторами
func Guard(next ObjectStore, timeout time.Duration, maxRetries int, logger *logrus.Logger) ObjectStore {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &guardedStore{
		next:       next,
		timeout:    timeout,
		maxRetries: maxRetries,
		baseDelay:  defaultRetryDelay,
		logger:     logger,
	}
}

func (g *guardedStore) Put(ctx context.Context, key string, data []byte, meta ObjectMeta) (int64, error) {
	var size int64
	err := g.retry(ctx, "put", key, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		var err error
		size, err = g.next.Put(callCtx, key, data, meta)
		return timeoutError(callCtx, "put", key, err)
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (g *guardedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := g.retry(ctx, "get", key, func(ctx context.Context) error {
		// таймаут покрывает и чтение потока, поэтому cancel вызывается в Close
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		rc, err := g.next.Get(callCtx, key)
		if err != nil {
			cancel()
			return timeoutError(callCtx, "get", key, err)
		}
		body = &cancelOnClose{ReadCloser: rc, cancel: cancel}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (g *guardedStore) Delete(ctx context.Context, key string) error {
	return g.retry(ctx, "delete", key, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return timeoutError(callCtx, "delete", key, g.next.Delete(callCtx, key))
	})
}

func (g *guardedStore) Probe(ctx context.Context) models.ProbeResult {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.next.Probe(callCtx)
}

func (g *guardedStore) retry(ctx context.Context, op, key string, call func(ctx context.Context) error) error {
	delay := g.baseDelay
	var err error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err = call(ctx); err == nil || !models.IsRetryable(err) {
			return err
		}
		if attempt == g.maxRetries {
			break
		}
		g.logger.WithError(err).WithFields(logrus.Fields{
			"op":           op,
			"key":          key,
			"retries_left": g.maxRetries - attempt,
		}).Warnf("Transient object store failure, retrying in %v", delay)

		select {
		case <-ctx.Done():
			return storeError(op, key, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2 // Экспоненциальная задержка
	}
	return err
}

// timeoutError превращает истечение таймаута вызова в повторяемую StoreError
func timeoutError(callCtx context.Context, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, models.ErrNotFound) {
		return &models.StoreError{Op: op, Key: key, Retryable: true, Err: context.DeadlineExceeded}
	}
	return err
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
