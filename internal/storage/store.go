package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_documents/internal/models"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// ObjectStore - шлюз к объектному хранилищу. Реализации выбираются один раз
// при старте (NewObjectStore) и дальше взаимозаменяемы.
type ObjectStore interface {
	// Put записывает data под ключом key, перезаписывая существующий объект.
	// Возвращает число записанных байт; при ошибке считается, что ничего не сохранено.
	Put(ctx context.Context, key string, data []byte, meta ObjectMeta) (int64, error)

	// Get открывает объект на чтение. models.ErrNotFound, если ключа нет.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete удаляет объект. Удаление отсутствующего ключа не ошибка.
	Delete(ctx context.Context, key string) error

	// Probe проверяет доступность хранилища и никогда не паникует.
	Probe(ctx context.Context) models.ProbeResult
}

// ObjectMeta - описательные метаданные, сохраняемые вместе с объектом
type ObjectMeta struct {
	IncidentID       uuid.UUID
	OriginalFilename string
	ContentType      string
	UploadedAt       time.Time
	UploadedBy       string
}

// Tags возвращает метаданные в виде пар ключ-значение для провайдера
func (m ObjectMeta) Tags() map[string]string {
	tags := map[string]string{
		"incident_id":       m.IncidentID.String(),
		"original_filename": asciiHeaderValue(m.OriginalFilename),
		"upload_date":       m.UploadedAt.UTC().Format(time.RFC3339),
	}
	if m.UploadedBy != "" {
		tags["uploaded_by"] = asciiHeaderValue(m.UploadedBy)
	}
	return tags
}

// asciiHeaderValue: метаданные уходят в HTTP-заголовки, поэтому не-ASCII
// символы транслитерируются, а остальное отбрасывается.
func asciiHeaderValue(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range foldToASCII(s) {
		if r >= 0x20 && r < 0x7f {
			out = append(out, r)
		}
	}
	return string(out)
}
