package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/shenikar/incident_documents/internal/webhook"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=incident.go -destination=mocks/mock_incident.go -package=mocks

// MaxTitleLength - ограничение колонки incidents.title
const MaxTitleLength = 200

const maxCascadeAttempts = 3

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	Ping(ctx context.Context) error
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.IncidentDetail, int64, error)
	SetIncidentCache(ctx context.Context, detail *models.IncidentDetail, generation int64) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// IncidentService определяет контракт для бизнес-логики управления инцидентами
type IncidentService interface {
	CreateIncident(ctx context.Context, incident *models.Incident, files []models.UploadFile, uploadedBy string) (*models.UploadResult, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.IncidentDetail, error)
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	DeleteIncident(ctx context.Context, id uuid.UUID) error
}

type incidentService struct {
	repo        IncidentRepository
	documents   DocumentRepository
	attachments DocumentService
	publisher   webhook.WebhookPublisher
	logger      *logrus.Logger
}

func NewIncidentService(
	repo IncidentRepository,
	documents DocumentRepository,
	attachments DocumentService,
	publisher webhook.WebhookPublisher,
	logger *logrus.Logger,
) IncidentService {
	return &incidentService{
		repo:        repo,
		documents:   documents,
		attachments: attachments,
		publisher:   publisher,
		logger:      logger,
	}
}

// ValidateIncident нормализует поля и проверяет их до записи в каталог
func ValidateIncident(incident *models.Incident) error {
	incident.Title = strings.TrimSpace(incident.Title)
	if incident.Title == "" {
		return models.NewValidationError("title", "title is required")
	}
	if utf8.RuneCountInString(incident.Title) > MaxTitleLength {
		return models.NewValidationError("title", fmt.Sprintf("title longer than %d characters", MaxTitleLength))
	}
	if incident.Severity == "" {
		incident.Severity = models.DefaultSeverity
	}
	if !incident.Severity.IsValid() {
		return models.NewValidationError("severity", fmt.Sprintf("unknown severity %q", incident.Severity))
	}
	if incident.OccurredAt.IsZero() {
		incident.OccurredAt = time.Now().UTC()
	}
	return nil
}

// CreateIncident сохраняет инцидент, затем прикрепляет файлы. Инцидент
// фиксируется до обработки вложений, их ошибки попадают только в результат.
func (s *incidentService) CreateIncident(ctx context.Context, incident *models.Incident, files []models.UploadFile, uploadedBy string) (*models.UploadResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "CreateIncident",
		"title":   incident.Title,
		"files":   len(files),
	})
	log.Info("Attempting to create a new incident")

	if err := ValidateIncident(incident); err != nil {
		log.WithError(err).Warn("Incident rejected by validation")
		return nil, fmt.Errorf("service: invalid incident: %w", err)
	}

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}
	log = log.WithField("incident_id", incident.ID)
	log.Info("Incident created successfully")

	publish(ctx, s.publisher, s.logger, webhook.WebhookEvent{
		Type:       webhook.EventIncidentCreated,
		IncidentID: incident.ID,
		Timestamp:  time.Now().UTC(),
	})

	result := models.NewUploadResult()
	if len(files) == 0 {
		return result, nil
	}

	attached, err := s.attachments.Attach(ctx, incident.ID, files, uploadedBy)
	if err != nil {
		// Инцидент уже сохранен: сбой вложений отражается в результате
		log.WithError(err).Error("Failed to attach documents to a new incident")
		for _, f := range files {
			result.Fail(f.Filename, err)
		}
		return result, nil
	}
	incident.DocumentsCount = len(attached.Succeeded)
	return attached, nil
}

// GetIncident возвращает инцидент с документами, сначала из кеша.
// Снимок из бд кешируется только под поколением, прочитанным до запросов.
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.IncidentDetail, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	cached, generation, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident from cache")
	}
	if cached != nil {
		log.Debug("Incident served from cache")
		return cached, nil
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	docs, err := s.documents.ListByIncident(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to list incident documents")
		return nil, fmt.Errorf("service: could not get incident documents: %w", err)
	}
	incident.DocumentsCount = len(docs)
	detail := &models.IncidentDetail{Incident: *incident, Documents: docs}

	if err := s.repo.SetIncidentCache(ctx, detail, generation); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}

	log.Info("Incident fetched successfully")
	return detail, nil
}

// ListIncidents возвращает список инцидентов с пагинацией
func (s *incidentService) ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error) {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "ListIncidents",
		"page":      page,
		"page_size": pageSize,
	})
	log.Info("Listing incidents")

	incidents, err := s.repo.ListIncidents(ctx, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// DeleteIncident удаляет документы (объект, затем строка) и только потом
// сам инцидент. Если часть документов удалить не удалось, инцидент остается.
func (s *incidentService) DeleteIncident(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "DeleteIncident",
		"incident_id": id,
	})
	log.Info("Attempting to delete incident")

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		log.WithError(err).Warn("Attempted to delete a non-existent incident")
		return fmt.Errorf("service: incident with id %s not found for delete: %w", id, err)
	}

	// Документ, загруженный во время каскада, не дает удалить строку:
	// каскад повторяется, пока попытки не кончатся
	var err error
	for attempt := 1; attempt <= maxCascadeAttempts; attempt++ {
		if err = s.attachments.DeleteByIncident(ctx, id); err != nil {
			log.WithError(err).Error("Cascade stopped, incident kept")
			s.invalidate(ctx, id)
			return fmt.Errorf("service: could not delete incident documents: %w", err)
		}
		err = s.repo.Delete(ctx, id)
		if !errors.Is(err, models.ErrHasDocuments) {
			break
		}
		log.WithField("attempt", attempt).Warn("Documents attached during cascade, repeating")
	}
	if err != nil {
		log.WithError(err).Error("Failed to delete incident in repository")
		s.invalidate(ctx, id)
		return fmt.Errorf("service: could not delete incident: %w", err)
	}
	s.invalidate(ctx, id)

	publish(ctx, s.publisher, s.logger, webhook.WebhookEvent{
		Type:       webhook.EventIncidentDeleted,
		IncidentID: id,
		Timestamp:  time.Now().UTC(),
	})

	log.Info("Incident deleted successfully")
	return nil
}

func (s *incidentService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		s.logger.WithError(err).WithField("incident_id", id).Warn("Failed to invalidate incident cache")
	}
}
