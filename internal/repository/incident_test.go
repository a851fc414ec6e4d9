package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var incidentColumns = []string{"id", "title", "description", "severity", "occurred_at", "created_at", "updated_at", "documents_count"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestIncidentRepository_Create(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()
	incident := &models.Incident{Title: "Panne réseau", Severity: models.SeverityCritical, OccurredAt: now}

	// Ожидания
	mock.ExpectQuery("INSERT INTO incidents").
		WithArgs(incident.Title, incident.Description, incident.Severity, incident.OccurredAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id.String(), now, now))

	// Действие
	err := repo.Create(ctx, incident)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, id, incident.ID)
	assert.Equal(t, 0, incident.DocumentsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_Create_CheckViolation(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)

	// Ожидания
	mock.ExpectQuery("INSERT INTO incidents").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgCheckViolation})

	// Действие
	err := repo.Create(context.Background(), &models.Incident{Title: "x", Severity: "Urgente"})

	// Проверки
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestIncidentRepository_GetByID(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)
	id := uuid.New()
	now := time.Now()

	// Ожидания
	mock.ExpectQuery("FROM incidents i").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(incidentColumns).
			AddRow(id.String(), "Panne réseau", "", models.SeverityCritical, now, now, now, 1))

	// Действие
	incident, err := repo.GetByID(context.Background(), id)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, id, incident.ID)
	assert.Equal(t, "Panne réseau", incident.Title)
	assert.Equal(t, models.SeverityCritical, incident.Severity)
	assert.Equal(t, 1, incident.DocumentsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_GetByID_NotFound(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)
	id := uuid.New()

	// Ожидания
	mock.ExpectQuery("FROM incidents i").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	// Действие
	incident, err := repo.GetByID(context.Background(), id)

	// Проверки
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIncidentRepository_GetByID_CatalogUnavailable(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)
	id := uuid.New()
	driverErr := errors.New("connection reset by peer")

	// Ожидания
	mock.ExpectQuery("FROM incidents i").WithArgs(id).WillReturnError(driverErr)

	// Действие
	_, err := repo.GetByID(context.Background(), id)

	// Проверки
	assert.ErrorIs(t, err, models.ErrCatalog)
	assert.ErrorIs(t, err, driverErr)
}

func TestIncidentRepository_Delete(t *testing.T) {
	testCases := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "deleted", rows: 1},
		{name: "missing", rows: 0, wantErr: models.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Подготовка
			mock := newMockPool(t)
			repo := NewIncidentRepository(mock, nil, 0)
			id := uuid.New()

			// Ожидания
			mock.ExpectExec("DELETE FROM incidents").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", tc.rows))

			// Действие
			err := repo.Delete(context.Background(), id)

			// Проверки
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIncidentRepository_Delete_DocumentsLeft(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)
	id := uuid.New()

	// Ожидания: внешний ключ документов не дает удалить строку
	mock.ExpectExec("DELETE FROM incidents").WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

	// Действие
	err := repo.Delete(context.Background(), id)

	// Проверки
	assert.ErrorIs(t, err, models.ErrHasDocuments)
	assert.ErrorIs(t, err, models.ErrCatalog)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_ListIncidents(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)
	now := time.Now()
	first, second := uuid.New(), uuid.New()

	// Ожидания: страница 2 по 10 записей - смещение 10
	mock.ExpectQuery("ORDER BY i.occurred_at DESC").
		WithArgs(10, 10).
		WillReturnRows(pgxmock.NewRows(incidentColumns).
			AddRow(first.String(), "A", "", models.SeverityLow, now, now, now, 3).
			AddRow(second.String(), "B", "desc", models.SeverityHigh, now.Add(-time.Hour), now, now, 0))

	// Действие
	incidents, err := repo.ListIncidents(context.Background(), 2, 10)

	// Проверки
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, first, incidents[0].ID)
	assert.Equal(t, 3, incidents[0].DocumentsCount)
	assert.Equal(t, "desc", incidents[1].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_Ping(t *testing.T) {
	// Подготовка
	mock := newMockPool(t)
	repo := NewIncidentRepository(mock, nil, 0)

	// Ожидания
	mock.ExpectQuery("SELECT 1").WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("dial tcp: connection refused"))

	// Действие и проверки
	assert.NoError(t, repo.Ping(context.Background()))
	assert.ErrorIs(t, repo.Ping(context.Background()), models.ErrCatalog)
}

func TestIncidentRepository_CacheDisabledWithoutRedis(t *testing.T) {
	// Подготовка
	repo := NewIncidentRepository(newMockPool(t), nil, 0)
	ctx := context.Background()
	id := uuid.New()

	// Действие
	detail, generation, err := repo.GetIncidentFromCache(ctx, id)

	// Проверки
	assert.NoError(t, err)
	assert.Nil(t, detail)
	assert.Zero(t, generation)
	assert.NoError(t, repo.SetIncidentCache(ctx, &models.IncidentDetail{Incident: models.Incident{ID: id}}, generation))
	assert.NoError(t, repo.InvalidateIncidentCache(ctx, id))
}

func TestParseGeneration(t *testing.T) {
	testCases := []struct {
		name     string
		val      interface{}
		expected int64
		wantErr  bool
	}{
		{name: "missing key", val: nil, expected: 0},
		{name: "counter", val: "12", expected: 12},
		{name: "garbage", val: "twelve", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			generation, err := parseGeneration(tc.val)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, generation)
		})
	}
}

// newTestRedis подключается к Redis из REDIS_TEST_ADDR, иначе тест пропускается
func newTestRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestIncidentRepository_CacheGeneration(t *testing.T) {
	// Подготовка
	client := newTestRedis(t)
	repo := NewIncidentRepository(newMockPool(t), client, time.Minute)
	ctx := context.Background()
	id := uuid.New()
	t.Cleanup(func() { client.Del(ctx, cacheKey(id), generationKey(id)) })
	stale := &models.IncidentDetail{Incident: models.Incident{ID: id, Title: "Panne"}}

	// Промах: читаем поколение, затем инвалидация опережает запись
	detail, generation, err := repo.GetIncidentFromCache(ctx, id)
	require.NoError(t, err)
	require.Nil(t, detail)
	require.NoError(t, repo.InvalidateIncidentCache(ctx, id))
	require.NoError(t, repo.SetIncidentCache(ctx, stale, generation))

	detail, current, err := repo.GetIncidentFromCache(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, detail, "snapshot taken before invalidation must not be cached")
	assert.Equal(t, generation+1, current)

	// Запись под актуальным поколением проходит
	fresh := &models.IncidentDetail{Incident: models.Incident{ID: id, Title: "Panne", DocumentsCount: 1}}
	require.NoError(t, repo.SetIncidentCache(ctx, fresh, current))

	detail, _, err = repo.GetIncidentFromCache(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, 1, detail.DocumentsCount)
}
