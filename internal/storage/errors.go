package storage

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/shenikar/incident_documents/internal/models"
)

var errEmptyKey = errors.New("empty object key")

func notFound(key string) error {
	return fmt.Errorf("object %s: %w", key, models.ErrNotFound)
}

// storeError оборачивает ошибку провайдера в models.StoreError.
// Таймауты, отмена контекста и сетевые сбои помечаются как повторяемые.
func storeError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *models.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &models.StoreError{Op: op, Key: key, Retryable: isTransient(err), Err: err}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
