package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateIncidentRequest DTO для создания инцидента (multipart/form-data)
// @Description DTO для создания инцидента; файлы передаются в поле documents
type CreateIncidentRequest struct {
	Title       string `form:"title" validate:"required,max=200"`
	Description string `form:"description"`
	Severity    string `form:"severity" validate:"omitempty,oneof=Critique Élevée Moyenne Faible"`
	OccurredAt  string `form:"occurred_at"`
	UploadedBy  string `form:"uploaded_by" validate:"max=100"`
}

// AttachDocumentsRequest DTO для догрузки файлов к инциденту
// @Description DTO для догрузки файлов; файлы передаются в поле documents
type AttachDocumentsRequest struct {
	UploadedBy string `form:"uploaded_by" validate:"max=100"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Severity       string    `json:"severity"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	DocumentsCount int       `json:"documents_count"`
}

// DocumentResponse DTO с метаданными документа
// @Description DTO с метаданными документа
type DocumentResponse struct {
	ID          uuid.UUID `json:"id"`
	IncidentID  uuid.UUID `json:"incident_id"`
	Filename    string    `json:"filename"`
	ObjectKey   string    `json:"object_key"`
	SizeBytes   int64     `json:"size_bytes"`
	Size        string    `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UploadedBy  string    `json:"uploaded_by"`
	DownloadURL string    `json:"download_url"`
}

// IncidentDetailResponse DTO инцидента вместе с документами
// @Description DTO инцидента вместе с документами
type IncidentDetailResponse struct {
	IncidentResponse
	Documents []*DocumentResponse `json:"documents"`
}

// FailedUploadResponse DTO файла, который не удалось прикрепить
// @Description DTO файла, который не удалось прикрепить
type FailedUploadResponse struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Kind     string `json:"kind"`
}

// UploadResponse DTO итогов загрузки пакета файлов
// @Description DTO итогов загрузки пакета файлов
type UploadResponse struct {
	Uploaded []*DocumentResponse    `json:"uploaded"`
	Failed   []FailedUploadResponse `json:"failed"`
}

// CreateIncidentResponse DTO ответа на создание инцидента
// @Description DTO ответа на создание инцидента
type CreateIncidentResponse struct {
	Incident *IncidentResponse `json:"incident"`
	UploadResponse
}

// LimitsResponse DTO с ограничениями на загрузку
// @Description DTO с ограничениями на загрузку
type LimitsResponse struct {
	MaxFileSizeBytes int64               `json:"max_file_size_bytes"`
	MaxFileSize      string              `json:"max_file_size"`
	Severities       []string            `json:"severities"`
	Categories       map[string][]string `json:"categories"`
}
