package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shenikar/incident_documents/internal/models"
	"github.com/shenikar/incident_documents/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=diagnostics.go -destination=mocks/mock_diagnostics.go -package=mocks

const probeTimeout = 5 * time.Second

// Pinger - зависимость, доступность которой можно проверить
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc позволяет использовать функцию как Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// DiagnosticsService сообщает состояние каталога, хранилища и кеша
type DiagnosticsService interface {
	Check(ctx context.Context) models.HealthReport
	StorageInfo(ctx context.Context) models.ProbeResult
}

type diagnosticsService struct {
	catalog Pinger
	store   storage.ObjectStore
	cache   Pinger
	logger  *logrus.Logger
}

// NewDiagnosticsService: cache может быть nil, тогда кеш считается отключенным
func NewDiagnosticsService(catalog Pinger, store storage.ObjectStore, cache Pinger, logger *logrus.Logger) DiagnosticsService {
	return &diagnosticsService{
		catalog: catalog,
		store:   store,
		cache:   cache,
		logger:  logger,
	}
}

// Check опрашивает зависимости параллельно и независимо; ошибок не возвращает
func (s *diagnosticsService) Check(ctx context.Context) models.HealthReport {
	report := models.HealthReport{Timestamp: time.Now().UTC()}

	var g errgroup.Group
	g.Go(func() error {
		report.Database = s.ping(ctx, "postgres", s.catalog)
		return nil
	})
	g.Go(func() error {
		report.Storage = s.StorageInfo(ctx)
		return nil
	})
	g.Go(func() error {
		if s.cache == nil {
			report.Cache = models.ProbeResult{Status: models.StatusDisabled, Backend: "redis"}
			return nil
		}
		report.Cache = s.ping(ctx, "redis", s.cache)
		return nil
	})
	_ = g.Wait()

	report.Status = models.HealthHealthy
	for _, probe := range []models.ProbeResult{report.Database, report.Storage, report.Cache} {
		if probe.Status == models.StatusError {
			report.Status = models.HealthDegraded
		}
	}
	if report.Status != models.HealthHealthy {
		s.logger.WithFields(logrus.Fields{
			"database": report.Database.Status,
			"storage":  report.Storage.Status,
			"cache":    report.Cache.Status,
		}).Warn("Health check degraded")
	}
	return report
}

// StorageInfo - проверка хранилища с описанием backend и bucket
func (s *diagnosticsService) StorageInfo(ctx context.Context) (result models.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.ProbeResult{Status: models.StatusError, Detail: fmt.Sprintf("probe panicked: %v", r)}
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return s.store.Probe(ctx)
}

func (s *diagnosticsService) ping(ctx context.Context, backend string, p Pinger) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return models.ProbeResult{Status: models.StatusError, Backend: backend, Detail: err.Error()}
	}
	return models.ProbeResult{Status: models.StatusOK, Backend: backend}
}
