package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_documents/internal/config"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/shenikar/incident_documents/internal/storage"
	"github.com/shenikar/incident_documents/internal/webhook"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=document.go -destination=mocks/mock_document.go -package=mocks

// DocumentRepository определяет контракт для работы с бд документов
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]*models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DocumentService - загрузка, выдача и удаление вложений инцидента
type DocumentService interface {
	Attach(ctx context.Context, incidentID uuid.UUID, files []models.UploadFile, uploadedBy string) (*models.UploadResult, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, incidentID uuid.UUID) ([]*models.Document, error)
	OpenDocument(ctx context.Context, id uuid.UUID) (*models.Document, io.ReadCloser, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	DeleteByIncident(ctx context.Context, incidentID uuid.UUID) error
}

type documentService struct {
	incidents   IncidentRepository
	documents   DocumentRepository
	store       storage.ObjectStore
	classifier  *storage.Classifier
	keys        *storage.KeyGenerator
	publisher   webhook.WebhookPublisher
	logger      *logrus.Logger
	concurrency int
	now         func() time.Time
}

func NewDocumentService(
	incidents IncidentRepository,
	documents DocumentRepository,
	store storage.ObjectStore,
	classifier *storage.Classifier,
	keys *storage.KeyGenerator,
	publisher webhook.WebhookPublisher,
	logger *logrus.Logger,
	cfg *config.Config,
) DocumentService {
	concurrency := cfg.UploadConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &documentService{
		incidents:   incidents,
		documents:   documents,
		store:       store,
		classifier:  classifier,
		keys:        keys,
		publisher:   publisher,
		logger:      logger,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Attach прикрепляет пакет файлов к существующему инциденту. Каждый файл
// обрабатывается независимо: ошибка одного попадает в Failed и не прерывает
// остальные. Ошибка возвращается только если инцидента нет.
func (s *documentService) Attach(ctx context.Context, incidentID uuid.UUID, files []models.UploadFile, uploadedBy string) (*models.UploadResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "document",
		"method":      "Attach",
		"incident_id": incidentID,
		"files":       len(files),
	})
	log.Info("Attaching documents to incident")

	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		log.WithError(err).Warn("Attempted to attach documents to a non-existent incident")
		return nil, fmt.Errorf("service: could not attach documents: %w", err)
	}

	if uploadedBy == "" {
		uploadedBy = models.DefaultUploader
	}

	// Результаты собираются по индексу: порядок совпадает с входным
	docs := make([]*models.Document, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, f := range files {
		g.Go(func() error {
			docs[i], errs[i] = s.attachOne(ctx, incidentID, f, uploadedBy)
			return nil
		})
	}
	_ = g.Wait()

	result := models.NewUploadResult()
	for i, f := range files {
		if errs[i] != nil {
			log.WithError(errs[i]).WithField("filename", f.Filename).Warn("Document was not attached")
			result.Fail(f.Filename, errs[i])
			continue
		}
		result.Add(docs[i])
	}

	if len(result.Succeeded) > 0 {
		s.invalidate(ctx, incidentID)
		for _, doc := range result.Succeeded {
			s.publish(ctx, documentEvent(webhook.EventDocumentUploaded, doc))
		}
	}

	log.WithFields(logrus.Fields{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	}).Info("Documents attached")
	return result, nil
}

// attachOne: проверка -> чтение с ограничением -> ключ -> запись в хранилище -> строка в каталоге
func (s *documentService) attachOne(ctx context.Context, incidentID uuid.UUID, f models.UploadFile, uploadedBy string) (*models.Document, error) {
	if len(f.Filename) > models.MaxFilenameLength {
		return nil, models.NewValidationError("filename", fmt.Sprintf("filename longer than %d bytes", models.MaxFilenameLength))
	}
	// Заявленный размер проверяется до чтения
	if err := s.classifier.Validate(f.Filename, f.Size); err != nil {
		return nil, err
	}

	data, err := s.readLimited(f)
	if err != nil {
		return nil, err
	}
	if err := s.classifier.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	contentType := s.classifier.ContentType(f.ContentType, f.Filename, head)
	uploadedAt := s.now()
	key := s.keys.Generate(incidentID, f.Filename, uploadedAt)

	size, err := s.store.Put(ctx, key, data, storage.ObjectMeta{
		IncidentID:       incidentID,
		OriginalFilename: f.Filename,
		ContentType:      contentType,
		UploadedAt:       uploadedAt,
		UploadedBy:       uploadedBy,
	})
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		IncidentID:       incidentID,
		OriginalFilename: f.Filename,
		ObjectKey:        key,
		SizeBytes:        size,
		ContentType:      contentType,
		UploadedBy:       uploadedBy,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		// Строки нет - объект остался бы сиротой
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.WithError(delErr).WithField("object_key", key).Error("Failed to remove object after catalog insert failure")
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) readLimited(f models.UploadFile) ([]byte, error) {
	if f.Open == nil {
		return nil, models.NewValidationError("file", "no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, models.NewValidationError("file", fmt.Sprintf("could not open upload: %v", err))
	}
	defer rc.Close()

	// Читаем на байт больше лимита, чтобы обнаружить превышение
	data, err := io.ReadAll(io.LimitReader(rc, s.classifier.MaxSize()+1))
	if err != nil {
		return nil, models.NewValidationError("file", fmt.Sprintf("could not read upload: %v", err))
	}
	return data, nil
}

// GetDocument возвращает метаданные документа
func (s *documentService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not get document: %w", err)
	}
	return doc, nil
}

// ListDocuments возвращает документы инцидента, новые первыми
func (s *documentService) ListDocuments(ctx context.Context, incidentID uuid.UUID) ([]*models.Document, error) {
	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		return nil, fmt.Errorf("service: could not list documents: %w", err)
	}
	docs, err := s.documents.ListByIncident(ctx, incidentID)
	if err != nil {
		s.logger.WithError(err).WithField("incident_id", incidentID).Error("Failed to list documents from repository")
		return nil, fmt.Errorf("service: could not list documents: %w", err)
	}
	return docs, nil
}

// OpenDocument возвращает метаданные и поток байт; поток закрывает вызывающий
func (s *documentService) OpenDocument(ctx context.Context, id uuid.UUID) (*models.Document, io.ReadCloser, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "document",
		"method":      "OpenDocument",
		"document_id": id,
	})

	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("service: could not open document: %w", err)
	}
	body, err := s.store.Get(ctx, doc.ObjectKey)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.WithField("object_key", doc.ObjectKey).Warn("Document row references a missing object")
		} else {
			log.WithError(err).Error("Failed to read object from store")
		}
		return nil, nil, fmt.Errorf("service: could not open document: %w", err)
	}
	return doc, body, nil
}

// DeleteDocument: сначала объект, затем строка каталога. Если хранилище
// вернуло ошибку, метаданные не трогаются.
func (s *documentService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "document",
		"method":      "DeleteDocument",
		"document_id": id,
	})
	log.Info("Attempting to delete document")

	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to delete a non-existent document")
		return fmt.Errorf("service: could not delete document: %w", err)
	}

	if err := s.remove(ctx, doc); err != nil {
		log.WithError(err).Error("Failed to delete document")
		return fmt.Errorf("service: could not delete document: %w", err)
	}

	s.invalidate(ctx, doc.IncidentID)
	s.publish(ctx, documentEvent(webhook.EventDocumentDeleted, doc))

	log.Info("Document deleted successfully")
	return nil
}

// DeleteByIncident удаляет все документы инцидента в том же порядке, что и
// DeleteDocument. Документы, которые не удалось удалить, остаются в каталоге;
// повторный вызов безопасен.
func (s *documentService) DeleteByIncident(ctx context.Context, incidentID uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "document",
		"method":      "DeleteByIncident",
		"incident_id": incidentID,
	})

	docs, err := s.documents.ListByIncident(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("service: could not list documents for cascade: %w", err)
	}

	var errs []error
	for _, doc := range docs {
		if err := s.remove(ctx, doc); err != nil {
			log.WithError(err).WithField("document_id", doc.ID).Warn("Document kept after failed cascade step")
			errs = append(errs, err)
			continue
		}
		s.publish(ctx, documentEvent(webhook.EventDocumentDeleted, doc))
	}

	if len(errs) > 0 {
		return fmt.Errorf("service: %d of %d documents could not be deleted: %w", len(errs), len(docs), errors.Join(errs...))
	}
	log.WithField("count", len(docs)).Info("Incident documents deleted")
	return nil
}

func (s *documentService) remove(ctx context.Context, doc *models.Document) error {
	if err := s.store.Delete(ctx, doc.ObjectKey); err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, doc.ID); err != nil {
		// Объекта уже нет, строка осталась; повторное удаление это исправит
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (s *documentService) invalidate(ctx context.Context, incidentID uuid.UUID) {
	if err := s.incidents.InvalidateIncidentCache(ctx, incidentID); err != nil {
		s.logger.WithError(err).WithField("incident_id", incidentID).Warn("Failed to invalidate incident cache")
	}
}

func (s *documentService) publish(ctx context.Context, event webhook.WebhookEvent) {
	publish(ctx, s.publisher, s.logger, event)
}

func documentEvent(eventType string, doc *models.Document) webhook.WebhookEvent {
	id := doc.ID
	return webhook.WebhookEvent{
		Type:       eventType,
		IncidentID: doc.IncidentID,
		DocumentID: &id,
		Filename:   doc.OriginalFilename,
		ObjectKey:  doc.ObjectKey,
		SizeBytes:  doc.SizeBytes,
		Timestamp:  time.Now().UTC(),
	}
}

// publish - события аудита не влияют на результат операции
func publish(ctx context.Context, publisher webhook.WebhookPublisher, logger *logrus.Logger, event webhook.WebhookEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).WithField("event_type", event.Type).Warn("Failed to publish webhook event")
	}
}
