package models

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// DefaultContentType присваивается файлам с неизвестным MIME-типом
const DefaultContentType = "application/octet-stream"

// DefaultUploader - автор загрузки, если вызывающий его не указал
const DefaultUploader = "System"

// MaxFilenameLength - ограничение колонки incident_documents.filename
const MaxFilenameLength = 255

// Document - метаданные файла, приложенного к инциденту.
// Байты файла лежат в объектном хранилище под ключом ObjectKey.
type Document struct {
	ID               uuid.UUID `json:"id"`
	IncidentID       uuid.UUID `json:"incident_id"`
	OriginalFilename string    `json:"filename"`
	ObjectKey        string    `json:"object_key"`
	SizeBytes        int64     `json:"size_bytes"`
	ContentType      string    `json:"content_type"`
	UploadedAt       time.Time `json:"uploaded_at"`
	UploadedBy       string    `json:"uploaded_by"`
}

// UploadFile - файл-кандидат на прикрепление. Size - заявленный клиентом
// размер, он проверяется до чтения; Open открывает содержимое.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FailedUpload описывает файл из пакета, который не удалось приложить
type FailedUpload struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Kind     string `json:"kind"`
}

// UploadResult - итог обработки пакета файлов для одного инцидента
type UploadResult struct {
	Succeeded []*Document    `json:"succeeded"`
	Failed    []FailedUpload `json:"failed"`
}

func NewUploadResult() *UploadResult {
	return &UploadResult{
		Succeeded: make([]*Document, 0),
		Failed:    make([]FailedUpload, 0),
	}
}

func (r *UploadResult) Add(doc *Document) {
	r.Succeeded = append(r.Succeeded, doc)
}

func (r *UploadResult) Fail(filename string, err error) {
	r.Failed = append(r.Failed, FailedUpload{
		Filename: filename,
		Reason:   err.Error(),
		Kind:     KindOf(err),
	})
}
