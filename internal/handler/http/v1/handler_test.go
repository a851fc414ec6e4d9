package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/incident_documents/internal/config"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/shenikar/incident_documents/internal/service/mocks"
	"github.com/shenikar/incident_documents/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testAPIKey = "test-api-key"

var authHeader = map[string]string{"X-API-Key": testAPIKey}

type testDeps struct {
	incidents   *mocks.MockIncidentService
	documents   *mocks.MockDocumentService
	diagnostics *mocks.MockDiagnosticsService
	router      *gin.Engine
}

// newTestHandler создает Handler с мокированными сервисами
func newTestHandler(t *testing.T) *testDeps {
	ctrl := gomock.NewController(t)
	deps := &testDeps{
		incidents:   mocks.NewMockIncidentService(ctrl),
		documents:   mocks.NewMockDocumentService(ctrl),
		diagnostics: mocks.NewMockDiagnosticsService(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys:     []string{testAPIKey},
		MaxFileSize: 1024,
	}
	classifier, err := storage.NewClassifier(cfg.MaxFileSize)
	require.NoError(t, err)

	handler := NewHandler(deps.incidents, deps.documents, deps.diagnostics, classifier, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	deps.router = gin.New()
	api := deps.router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return deps
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type formFile struct {
	name    string
	content []byte
}

// multipartBody собирает multipart-форму и возвращает заголовки с ключом
func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (io.Reader, map[string]string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(documentsField, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, map[string]string{
		"Content-Type": writer.FormDataContentType(),
		"X-API-Key":    testAPIKey,
	}
}

func testDocument(incidentID uuid.UUID, filename string, size int64) *models.Document {
	return &models.Document{
		ID:               uuid.New(),
		IncidentID:       incidentID,
		OriginalFilename: filename,
		ObjectKey:        storage.Namespace(incidentID) + "/20240101_120000_abcd1234_" + filename,
		SizeBytes:        size,
		ContentType:      "application/pdf",
		UploadedAt:       time.Now().UTC(),
		UploadedBy:       "User",
	}
}

func TestCreateIncident_WithDocuments(t *testing.T) {
	deps := newTestHandler(t)
	incidentID := uuid.New()
	content := bytes.Repeat([]byte("%PDF"), 100)

	deps.incidents.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any(), gomock.Any(), "User").
		DoAndReturn(func(_ context.Context, inc *models.Incident, files []models.UploadFile, _ string) (*models.UploadResult, error) {
			assert.Equal(t, "Panne réseau", inc.Title)
			assert.Equal(t, models.SeverityCritical, inc.Severity)
			require.Len(t, files, 2)
			assert.Equal(t, "rapport.pdf", files[0].Filename)
			assert.Equal(t, int64(len(content)), files[0].Size)

			rc, err := files[0].Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, content, data)

			inc.ID = incidentID
			inc.DocumentsCount = 1
			result := models.NewUploadResult()
			result.Add(testDocument(incidentID, "rapport.pdf", int64(len(content))))
			result.Fail("virus.exe", models.NewValidationError("filename", "extension not allowed"))
			return result, nil
		})

	body, headers := multipartBody(t,
		map[string]string{"title": "Panne réseau", "severity": "Critique"},
		formFile{name: "rapport.pdf", content: content},
		formFile{name: "virus.exe", content: []byte("MZ")},
	)
	w := makeRequest(deps.router, http.MethodPost, "/api/v1/incidents", body, headers)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateIncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incidentID, resp.Incident.ID)
	assert.Equal(t, 1, resp.Incident.DocumentsCount)
	require.Len(t, resp.Uploaded, 1)
	assert.Equal(t, "rapport.pdf", resp.Uploaded[0].Filename)
	assert.Equal(t, "400 B", resp.Uploaded[0].Size)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "virus.exe", resp.Failed[0].Filename)
	assert.Equal(t, "validation", resp.Failed[0].Kind)
}

func TestCreateIncident_UrlEncodedWithoutFiles(t *testing.T) {
	deps := newTestHandler(t)

	deps.incidents.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any(), gomock.Nil(), "Alice").
		Return(models.NewUploadResult(), nil)

	form := "title=Coupure&uploaded_by=Alice&occurred_at=2024-03-01T10:30"
	w := makeRequest(deps.router, http.MethodPost, "/api/v1/incidents", strings.NewReader(form), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"X-API-Key":    testAPIKey,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateIncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), resp.Incident.OccurredAt)
	assert.Empty(t, resp.Uploaded)
	assert.Empty(t, resp.Failed)
}

func TestCreateIncident_ValidationError(t *testing.T) {
	testCases := []struct {
		name   string
		fields map[string]string
	}{
		{name: "unknown severity", fields: map[string]string{"title": "Panne", "severity": "Urgente"}},
		{name: "missing title", fields: map[string]string{"severity": "Faible"}},
		{name: "title too long", fields: map[string]string{"title": strings.Repeat("a", 201)}},
		{name: "bad occurred_at", fields: map[string]string{"title": "Panne", "occurred_at": "yesterday"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestHandler(t)
			deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

			body, headers := multipartBody(t, tc.fields, formFile{name: "rapport.pdf", content: []byte("x")})
			w := makeRequest(deps.router, http.MethodPost, "/api/v1/incidents", body, headers)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestCreateIncident_ServiceErrors(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: models.NewValidationError("severity", "unknown severity"), wantStatus: http.StatusBadRequest},
		{name: "catalog", err: fmt.Errorf("insert incident: %w", models.ErrCatalog), wantStatus: http.StatusServiceUnavailable},
		{name: "unexpected", err: fmt.Errorf("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestHandler(t)
			deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tc.err)

			body, headers := multipartBody(t, map[string]string{"title": "Panne"})
			w := makeRequest(deps.router, http.MethodPost, "/api/v1/incidents", body, headers)

			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestGetIncident_Success(t *testing.T) {
	deps := newTestHandler(t)
	incidentID := uuid.New()
	detail := &models.IncidentDetail{
		Incident: models.Incident{ID: incidentID, Title: "Panne réseau", Severity: models.SeverityHigh, DocumentsCount: 1},
		Documents: []*models.Document{
			testDocument(incidentID, "rapport.pdf", 500000),
		},
	}
	deps.incidents.EXPECT().GetIncident(gomock.Any(), incidentID).Return(detail, nil)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/incidents/"+incidentID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp IncidentDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incidentID, resp.ID)
	assert.Equal(t, "Élevée", resp.Severity)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "488 KiB", resp.Documents[0].Size)
	assert.Equal(t, fmt.Sprintf("/api/v1/documents/%s/download", detail.Documents[0].ID), resp.Documents[0].DownloadURL)
}

func TestGetIncident_InvalidID(t *testing.T) {
	deps := newTestHandler(t)
	deps.incidents.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/incidents/invalid-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	deps := newTestHandler(t)
	incidentID := uuid.New()
	deps.incidents.EXPECT().GetIncident(gomock.Any(), incidentID).Return(nil, models.ErrNotFound)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/incidents/"+incidentID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestListIncidents_Success(t *testing.T) {
	deps := newTestHandler(t)
	incidents := []*models.Incident{
		{ID: uuid.New(), Title: "A", Severity: models.SeverityLow, DocumentsCount: 2},
		{ID: uuid.New(), Title: "B", Severity: models.SeverityMedium},
	}
	deps.incidents.EXPECT().ListIncidents(gomock.Any(), 2, 5).Return(incidents, nil)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/incidents?page=2&pageSize=5", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, 2, resp[0].DocumentsCount)
}

func TestListIncidents_CatalogUnavailable(t *testing.T) {
	deps := newTestHandler(t)
	deps.incidents.EXPECT().ListIncidents(gomock.Any(), 1, 20).Return(nil, models.ErrCatalog)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/incidents", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeleteIncident(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusNoContent},
		{name: "not found", err: models.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "object store failure", err: &models.StoreError{Op: "delete", Key: "k"}, wantStatus: http.StatusBadGateway},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestHandler(t)
			incidentID := uuid.New()
			deps.incidents.EXPECT().DeleteIncident(gomock.Any(), incidentID).Return(tc.err)

			w := makeRequest(deps.router, http.MethodDelete, "/api/v1/incidents/"+incidentID.String(), nil, authHeader)

			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestAttachDocuments_Success(t *testing.T) {
	deps := newTestHandler(t)
	incidentID := uuid.New()

	deps.documents.EXPECT().
		Attach(gomock.Any(), incidentID, gomock.Len(1), "Bob").
		DoAndReturn(func(_ context.Context, id uuid.UUID, files []models.UploadFile, _ string) (*models.UploadResult, error) {
			result := models.NewUploadResult()
			result.Add(testDocument(id, files[0].Filename, files[0].Size))
			return result, nil
		})

	body, headers := multipartBody(t, map[string]string{"uploaded_by": "Bob"}, formFile{name: "notes.txt", content: []byte("notes")})
	w := makeRequest(deps.router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/documents", body, headers)

	require.Equal(t, http.StatusOK, w.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Uploaded, 1)
	assert.Equal(t, "notes.txt", resp.Uploaded[0].Filename)
	assert.Empty(t, resp.Failed)
}

func TestAttachDocuments_NoFiles(t *testing.T) {
	deps := newTestHandler(t)
	deps.documents.EXPECT().Attach(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	body, headers := multipartBody(t, map[string]string{"uploaded_by": "Bob"})
	w := makeRequest(deps.router, http.MethodPost, "/api/v1/incidents/"+uuid.NewString()+"/documents", body, headers)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no documents provided")
}

func TestAttachDocuments_IncidentNotFound(t *testing.T) {
	deps := newTestHandler(t)
	deps.documents.EXPECT().Attach(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrNotFound)

	body, headers := multipartBody(t, nil, formFile{name: "notes.txt", content: []byte("notes")})
	w := makeRequest(deps.router, http.MethodPost, "/api/v1/incidents/"+uuid.NewString()+"/documents", body, headers)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDocuments_Success(t *testing.T) {
	deps := newTestHandler(t)
	incidentID := uuid.New()
	docs := []*models.Document{testDocument(incidentID, "b.pdf", 10), testDocument(incidentID, "a.pdf", 20)}
	deps.documents.EXPECT().ListDocuments(gomock.Any(), incidentID).Return(docs, nil)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/incidents/"+incidentID.String()+"/documents", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "b.pdf", resp[0].Filename)
}

func TestGetDocument(t *testing.T) {
	deps := newTestHandler(t)
	doc := testDocument(uuid.New(), "rapport.pdf", 500000)
	deps.documents.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil)
	missing := uuid.New()
	deps.documents.EXPECT().GetDocument(gomock.Any(), missing).Return(nil, models.ErrNotFound)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, doc.ObjectKey, resp.ObjectKey)
	assert.Equal(t, int64(500000), resp.SizeBytes)

	w = makeRequest(deps.router, http.MethodGet, "/api/v1/documents/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "document not found")
}

func TestDownloadDocument_Success(t *testing.T) {
	deps := newTestHandler(t)
	content := []byte("%PDF-1.4 rapport")
	doc := testDocument(uuid.New(), "rapport.pdf", int64(len(content)))
	deps.documents.EXPECT().OpenDocument(gomock.Any(), doc.ID).Return(doc, io.NopCloser(bytes.NewReader(content)), nil)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/documents/"+doc.ID.String()+"/download", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=rapport.pdf", w.Header().Get("Content-Disposition"))
	assert.Equal(t, content, w.Body.Bytes())
}

func TestDownloadDocument_NonASCIIFilename(t *testing.T) {
	deps := newTestHandler(t)
	doc := testDocument(uuid.New(), "Panne réseau.pdf", 3)
	deps.documents.EXPECT().OpenDocument(gomock.Any(), doc.ID).Return(doc, io.NopCloser(strings.NewReader("abc")), nil)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/documents/"+doc.ID.String()+"/download", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename*=utf-8''Panne%20r%C3%A9seau.pdf", w.Header().Get("Content-Disposition"))
}

func TestDownloadDocument_StoreFailure(t *testing.T) {
	deps := newTestHandler(t)
	id := uuid.New()
	deps.documents.EXPECT().OpenDocument(gomock.Any(), id).Return(nil, nil, &models.StoreError{Op: "get", Key: "k", Retryable: true})

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/documents/"+id.String()+"/download", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "object store unavailable")
}

func TestDeleteDocument(t *testing.T) {
	deps := newTestHandler(t)
	id := uuid.New()
	deps.documents.EXPECT().DeleteDocument(gomock.Any(), id).Return(nil)

	w := makeRequest(deps.router, http.MethodDelete, "/api/v1/documents/"+id.String(), nil, authHeader)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealthCheck(t *testing.T) {
	testCases := []struct {
		name       string
		report     models.HealthReport
		wantStatus int
	}{
		{
			name: "healthy",
			report: models.HealthReport{
				Status:   models.HealthHealthy,
				Database: models.ProbeResult{Status: models.StatusOK},
				Storage:  models.ProbeResult{Status: models.StatusOK, Backend: "mock"},
				Cache:    models.ProbeResult{Status: models.StatusDisabled},
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "degraded",
			report: models.HealthReport{
				Status:   models.HealthDegraded,
				Database: models.ProbeResult{Status: models.StatusOK},
				Storage:  models.ProbeResult{Status: models.StatusError, Detail: "bucket not found"},
				Cache:    models.ProbeResult{Status: models.StatusOK},
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestHandler(t)
			deps.diagnostics.EXPECT().Check(gomock.Any()).Return(tc.report)

			w := makeRequest(deps.router, http.MethodGet, "/api/v1/system/health", nil)

			assert.Equal(t, tc.wantStatus, w.Code)
			var resp models.HealthReport
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.report.Status, resp.Status)
			assert.Equal(t, tc.report.Storage.Status, resp.Storage.Status)
		})
	}
}

func TestStorageInfo(t *testing.T) {
	deps := newTestHandler(t)
	deps.diagnostics.EXPECT().StorageInfo(gomock.Any()).
		Return(models.ProbeResult{Status: models.StatusOK, Backend: "minio", Bucket: "incident-documents"})

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/system/storage", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bucket":"incident-documents"`)
}

func TestLimits(t *testing.T) {
	deps := newTestHandler(t)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/system/limits", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp LimitsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1024), resp.MaxFileSizeBytes)
	assert.Equal(t, "1.0 KiB", resp.MaxFileSize)
	assert.Equal(t, []string{"Critique", "Élevée", "Moyenne", "Faible"}, resp.Severities)
	assert.NotEmpty(t, resp.Categories)
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{name: "x-api-key", headers: authHeader, wantStatus: http.StatusNoContent},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer " + testAPIKey}, wantStatus: http.StatusNoContent},
		{name: "missing key", headers: map[string]string{}, wantStatus: http.StatusUnauthorized, wantBody: "API key required"},
		{name: "invalid key", headers: map[string]string{"X-API-Key": "wrong"}, wantStatus: http.StatusUnauthorized, wantBody: "Invalid API key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestHandler(t)
			id := uuid.New()
			if tc.wantStatus == http.StatusNoContent {
				deps.documents.EXPECT().DeleteDocument(gomock.Any(), id).Return(nil)
			} else {
				deps.documents.EXPECT().DeleteDocument(gomock.Any(), gomock.Any()).Times(0)
			}

			w := makeRequest(deps.router, http.MethodDelete, "/api/v1/documents/"+id.String(), nil, tc.headers)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantBody != "" {
				assert.Contains(t, w.Body.String(), tc.wantBody)
			}
		})
	}
}

func TestReadRoutesDoNotRequireKey(t *testing.T) {
	deps := newTestHandler(t)
	deps.incidents.EXPECT().ListIncidents(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*models.Incident{}, nil)

	w := makeRequest(deps.router, http.MethodGet, "/api/v1/incidents", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}
