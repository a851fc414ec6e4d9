package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/shenikar/incident_documents/internal/service"
)

const defaultCacheTTL = 5 * time.Minute

type IncidentRepository struct {
	db          DB
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewIncidentRepository создает репозиторий; redisClient может быть nil - тогда кеш отключен
func NewIncidentRepository(db DB, redisClient *redis.Client, cacheTTL time.Duration) service.IncidentRepository {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (title, description, severity, occurred_at)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Severity,
		incident.OccurredAt,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgCheckViolation {
			return models.NewValidationError("incident", "rejected by catalog constraint")
		}
		return catalogError("failed to create incident", err)
	}
	incident.DocumentsCount = 0
	return nil
}

// GetByID возвращает инцидент по его UUID вместе с числом документов
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	incident := &models.Incident{}
	query := `
		SELECT
			i.id,
			i.title,
			COALESCE(i.description, ''),
			i.severity,
			i.occurred_at,
			i.created_at,
			i.updated_at,
			(SELECT COUNT(*) FROM incident_documents d WHERE d.incident_id = i.id) AS documents_count
		FROM incidents i
		WHERE i.id = $1;
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Severity,
		&incident.OccurredAt,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.DocumentsCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
		}
		return nil, catalogError("failed to get incident by id", err)
	}
	return incident, nil
}

// Delete удаляет строку инцидента. Документы к этому моменту должны быть
// уже удалены оркестратором; внешний ключ с ON DELETE RESTRICT не даст
// удалить инцидент вместе с документом, загруженным параллельно.
func (r *IncidentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM incidents WHERE id = $1;`, id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("incident with id %s: %w: %w", id, models.ErrCatalog, models.ErrHasDocuments)
		}
		return catalogError("failed to delete incident", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListIncidents возвращает список инцидентов с пагинацией
func (r *IncidentRepository) ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error) {
	// рассчитываем смещение
	offset := (page - 1) * pageSize

	query := `
		SELECT
			i.id,
			i.title,
			COALESCE(i.description, ''),
			i.severity,
			i.occurred_at,
			i.created_at,
			i.updated_at,
			COUNT(d.id) AS documents_count
		FROM incidents i
		LEFT JOIN incident_documents d ON d.incident_id = i.id
		GROUP BY i.id
		ORDER BY i.occurred_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := r.db.Query(ctx, query, pageSize, offset)
	if err != nil {
		return nil, catalogError("failed to list incidents", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident := &models.Incident{}
		err := rows.Scan(
			&incident.ID,
			&incident.Title,
			&incident.Description,
			&incident.Severity,
			&incident.OccurredAt,
			&incident.CreatedAt,
			&incident.UpdatedAt,
			&incident.DocumentsCount,
		)
		if err != nil {
			return nil, catalogError("failed to scan incident row", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, catalogError("error list iteration", err)
	}
	return incidents, nil
}

// Ping - тривиальное чтение для диагностики
func (r *IncidentRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1;`).Scan(&one); err != nil {
		return catalogError("catalog ping failed", err)
	}
	return nil
}

func cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s", id.String())
}

// generationKey - счетчик инвалидаций карточки инцидента
func generationKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s:gen", id.String())
}

// setIfGenerationScript записывает карточку, только если с момента чтения
// поколения не было инвалидаций
var setIfGenerationScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// GetIncidentFromCache пытается получить карточку инцидента из Redis.
// При промахе возвращает текущее поколение кеша для SetIncidentCache.
func (r *IncidentRepository) GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.IncidentDetail, int64, error) {
	if r.redisClient == nil {
		return nil, 0, nil
	}
	vals, err := r.redisClient.MGet(ctx, cacheKey(id), generationKey(id)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	generation, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, generation, nil
	}

	detail := &models.IncidentDetail{}
	if err := json.Unmarshal([]byte(raw), detail); err != nil {
		return nil, generation, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return detail, generation, nil
}

func parseGeneration(val interface{}) (int64, error) {
	raw, ok := val.(string)
	if !ok {
		return 0, nil
	}
	generation, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cache generation %q: %w", raw, err)
	}
	return generation, nil
}

// SetIncidentCache сохраняет карточку инцидента в Redis. Если поколение
// изменилось после чтения, запись пропускается: карточка уже устарела.
func (r *IncidentRepository) SetIncidentCache(ctx context.Context, detail *models.IncidentDetail, generation int64) error {
	if r.redisClient == nil {
		return nil
	}
	val, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	keys := []string{cacheKey(detail.ID), generationKey(detail.ID)}
	err = setIfGenerationScript.Run(ctx, r.redisClient, keys,
		strconv.FormatInt(generation, 10), val, r.cacheTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateIncidentCache удаляет карточку из Redis и увеличивает поколение,
// чтобы параллельное чтение не записало старый снимок обратно
func (r *IncidentRepository) InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error {
	if r.redisClient == nil {
		return nil
	}
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(id))
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), r.cacheTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}
