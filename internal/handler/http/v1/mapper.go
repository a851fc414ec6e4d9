package v1

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shenikar/incident_documents/internal/models"
)

// форматы occurred_at: RFC3339 и значение HTML datetime-local
var occurredAtLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// DTOToIncidentModel преобразует DTO создания в доменную модель
func DTOToIncidentModel(dto CreateIncidentRequest) (*models.Incident, error) {
	incident := &models.Incident{
		Title:       strings.TrimSpace(dto.Title),
		Description: strings.TrimSpace(dto.Description),
		Severity:    models.Severity(dto.Severity),
	}
	if dto.OccurredAt != "" {
		occurredAt, err := parseOccurredAt(dto.OccurredAt)
		if err != nil {
			return nil, err
		}
		incident.OccurredAt = occurredAt
	}
	return incident, nil
}

func parseOccurredAt(value string) (time.Time, error) {
	for _, layout := range occurredAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, models.NewValidationError("occurred_at", fmt.Sprintf("unsupported time format %q", value))
}

// FileHeadersToUploads оборачивает файлы multipart-формы; содержимое
// открывается только в сервисе, после проверки имени и размера.
func FileHeadersToUploads(headers []*multipart.FileHeader) []models.UploadFile {
	uploads := make([]models.UploadFile, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, models.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:             model.ID,
		Title:          model.Title,
		Description:    model.Description,
		Severity:       string(model.Severity),
		OccurredAt:     model.OccurredAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		DocumentsCount: model.DocumentsCount,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ModelToDocumentResponse(model *models.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          model.ID,
		IncidentID:  model.IncidentID,
		Filename:    model.OriginalFilename,
		ObjectKey:   model.ObjectKey,
		SizeBytes:   model.SizeBytes,
		Size:        humanize.IBytes(uint64(model.SizeBytes)),
		ContentType: model.ContentType,
		UploadedAt:  model.UploadedAt,
		UploadedBy:  model.UploadedBy,
		DownloadURL: fmt.Sprintf("/api/v1/documents/%s/download", model.ID),
	}
}

func ModelsToDocumentResponses(docs []*models.Document) []*DocumentResponse {
	responses := make([]*DocumentResponse, len(docs))
	for i, doc := range docs {
		responses[i] = ModelToDocumentResponse(doc)
	}
	return responses
}

func ModelToIncidentDetailResponse(detail *models.IncidentDetail) *IncidentDetailResponse {
	return &IncidentDetailResponse{
		IncidentResponse: *ModelToIncidentResponse(&detail.Incident),
		Documents:        ModelsToDocumentResponses(detail.Documents),
	}
}

func ModelToUploadResponse(result *models.UploadResult) UploadResponse {
	failed := make([]FailedUploadResponse, len(result.Failed))
	for i, f := range result.Failed {
		failed[i] = FailedUploadResponse{Filename: f.Filename, Reason: f.Reason, Kind: f.Kind}
	}
	return UploadResponse{
		Uploaded: ModelsToDocumentResponses(result.Succeeded),
		Failed:   failed,
	}
}
