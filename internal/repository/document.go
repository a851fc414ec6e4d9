package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/shenikar/incident_documents/internal/service"
)

type DocumentRepository struct {
	db DB
}

func NewDocumentRepository(db DB) service.DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, incident_id, filename, object_key, size_bytes, content_type, uploaded_at, uploaded_by`

// Create вставляет строку документа и обновляет updated_at инцидента в одной
// транзакции. Ошибка внешнего ключа означает, что инцидента уже нет.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return catalogError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		INSERT INTO incident_documents (incident_id, filename, object_key, size_bytes, content_type, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, uploaded_at;
	`
	err = tx.QueryRow(ctx, query,
		doc.IncidentID,
		doc.OriginalFilename,
		doc.ObjectKey,
		doc.SizeBytes,
		doc.ContentType,
		doc.UploadedBy,
	).Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		switch pgCode(err) {
		case pgForeignKeyViolation:
			return fmt.Errorf("incident with id %s: %w", doc.IncidentID, models.ErrNotFound)
		case pgUniqueViolation:
			return catalogError(fmt.Sprintf("object key %s already registered", doc.ObjectKey), err)
		}
		return catalogError("failed to create document", err)
	}

	if _, err = tx.Exec(ctx, `UPDATE incidents SET updated_at = NOW() WHERE id = $1;`, doc.IncidentID); err != nil {
		return catalogError("failed to touch incident", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return catalogError("failed to commit document", err)
	}
	return nil
}

// GetByID возвращает документ по UUID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM incident_documents WHERE id = $1;`
	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document with id %s: %w", id, models.ErrNotFound)
		}
		return nil, catalogError("failed to get document by id", err)
	}
	return doc, nil
}

// ListByIncident возвращает документы инцидента, новые первыми
func (r *DocumentRepository) ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM incident_documents
		WHERE incident_id = $1
		ORDER BY uploaded_at DESC, id;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, catalogError("failed to list documents", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, catalogError("failed to scan document row", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, catalogError("error document iteration", err)
	}
	return docs, nil
}

// Delete удаляет ровно одну строку документа и обновляет updated_at инцидента
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return catalogError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var incidentID uuid.UUID
	err = tx.QueryRow(ctx, `DELETE FROM incident_documents WHERE id = $1 RETURNING incident_id;`, id).Scan(&incidentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("document with id %s: %w", id, models.ErrNotFound)
		}
		return catalogError("failed to delete document", err)
	}

	if _, err = tx.Exec(ctx, `UPDATE incidents SET updated_at = NOW() WHERE id = $1;`, incidentID); err != nil {
		return catalogError("failed to touch incident", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return catalogError("failed to commit document deletion", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	doc := &models.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.IncidentID,
		&doc.OriginalFilename,
		&doc.ObjectKey,
		&doc.SizeBytes,
		&doc.ContentType,
		&doc.UploadedAt,
		&doc.UploadedBy,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
