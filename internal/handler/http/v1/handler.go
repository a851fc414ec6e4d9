package v1

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/incident_documents/internal/config"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/shenikar/incident_documents/internal/service"
	"github.com/shenikar/incident_documents/internal/storage"
	"github.com/sirupsen/logrus"
)

// documentsField - имя поля multipart-формы с файлами
const documentsField = "documents"

// defaultUploader - автор загрузки через HTTP, если форма его не содержит
const defaultUploader = "User"

type Handler struct {
	incidentService service.IncidentService
	documentService service.DocumentService
	diagnostics     service.DiagnosticsService
	classifier      *storage.Classifier
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(
	incidentService service.IncidentService,
	documentService service.DocumentService,
	diagnostics service.DiagnosticsService,
	classifier *storage.Classifier,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		incidentService: incidentService,
		documentService: documentService,
		diagnostics:     diagnostics,
		classifier:      classifier,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Create a new incident
// @Description Create an incident and attach the uploaded files. Files that fail validation or storage are reported in "failed"; the incident is still created. Requires API key.
// @Tags Incidents
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param title formData string true "Incident title"
// @Param description formData string false "Incident description"
// @Param severity formData string false "Severity" Enums(Critique, Élevée, Moyenne, Faible)
// @Param occurred_at formData string false "Occurrence time (RFC3339)"
// @Param uploaded_by formData string false "Uploader name"
// @Param documents formData file false "Attached files"
// @Success 201 {object} CreateIncidentResponse
// @Failure 400 {object} map[string]string "Invalid form or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Catalog unavailable"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if err := c.ShouldBind(&input); err != nil {
		log.WithError(err).Warn("Failed to bind form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model, err := DTOToIncidentModel(input)
	if err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files, err := h.formFiles(c)
	if err != nil {
		log.WithError(err).Warn("Failed to read multipart form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	result, err := h.incidentService.CreateIncident(c.Request.Context(), model, files, uploaderOrDefault(input.UploadedBy))
	if err != nil {
		h.respondError(c, log, err, "incident")
		return
	}

	c.JSON(http.StatusCreated, CreateIncidentResponse{
		Incident:       ModelToIncidentResponse(model),
		UploadResponse: ModelToUploadResponse(result),
	})
}

// @Summary Get a list of incidents
// @Description Get a paginated list of incidents, newest occurrence first, with attachment counts.
// @Tags Incidents
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(20)
// @Success 200 {array} IncidentResponse
// @Failure 503 {object} map[string]string "Catalog unavailable"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), page, pageSize)
	if err != nil {
		h.respondError(c, log, err, "incident")
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident with its attached documents.
// @Tags Incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentDetailResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 503 {object} map[string]string "Catalog unavailable"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	detail, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err, "incident")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentDetailResponse(detail))
}

// @Summary Delete an incident
// @Description Delete an incident together with all its documents and stored objects. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 502 {object} map[string]string "Object store failure, incident kept"
// @Router /incidents/{id} [delete]
func (h *Handler) deleteIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "deleteIncident").WithField("id", id)

	if err := h.incidentService.DeleteIncident(c.Request.Context(), id); err != nil {
		h.respondError(c, log, err, "incident")
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Attach documents to an incident
// @Description Upload more files to an existing incident. Requires API key.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param uploaded_by formData string false "Uploader name"
// @Param documents formData file true "Attached files"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or form"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id}/documents [post]
func (h *Handler) attachDocuments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "attachDocuments").WithField("id", id)

	var input AttachDocumentsRequest
	if err := c.ShouldBind(&input); err != nil {
		log.WithError(err).Warn("Failed to bind form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files, err := h.formFiles(c)
	if err != nil {
		log.WithError(err).Warn("Failed to read multipart form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no documents provided"})
		return
	}

	result, err := h.documentService.Attach(c.Request.Context(), id, files, uploaderOrDefault(input.UploadedBy))
	if err != nil {
		h.respondError(c, log, err, "incident")
		return
	}
	c.JSON(http.StatusOK, ModelToUploadResponse(result))
}

// @Summary List incident documents
// @Description List metadata of documents attached to an incident, newest first.
// @Tags Documents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {array} DocumentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id}/documents [get]
func (h *Handler) listDocuments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "listDocuments").WithField("id", id)

	docs, err := h.documentService.ListDocuments(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err, "incident")
		return
	}
	c.JSON(http.StatusOK, ModelsToDocumentResponses(docs))
}

// @Summary Get document metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} DocumentResponse
// @Failure 400 {object} map[string]string "Invalid document ID"
// @Failure 404 {object} map[string]string "Document not found"
// @Router /documents/{id} [get]
func (h *Handler) getDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID"})
		return
	}
	log := h.logger.WithField("method", "getDocument").WithField("id", id)

	doc, err := h.documentService.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err, "document")
		return
	}
	c.JSON(http.StatusOK, ModelToDocumentResponse(doc))
}

// @Summary Download a document
// @Description Stream the stored bytes under the original filename.
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Success 200 {file} file
// @Failure 400 {object} map[string]string "Invalid document ID"
// @Failure 404 {object} map[string]string "Document not found"
// @Failure 502 {object} map[string]string "Object store failure"
// @Router /documents/{id}/download [get]
func (h *Handler) downloadDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID"})
		return
	}
	log := h.logger.WithField("method", "downloadDocument").WithField("id", id)

	doc, body, err := h.documentService.OpenDocument(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err, "document")
		return
	}
	defer body.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = models.DefaultContentType
	}
	extraHeaders := map[string]string{
		"Content-Disposition": contentDisposition(doc.OriginalFilename),
	}
	c.DataFromReader(http.StatusOK, doc.SizeBytes, contentType, body, extraHeaders)
}

// @Summary Delete a document
// @Description Remove the stored object and then the metadata record. Requires API key.
// @Tags Documents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Document ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid document ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Document not found"
// @Failure 502 {object} map[string]string "Object store failure, metadata kept"
// @Router /documents/{id} [delete]
func (h *Handler) deleteDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID"})
		return
	}
	log := h.logger.WithField("method", "deleteDocument").WithField("id", id)

	if err := h.documentService.DeleteDocument(c.Request.Context(), id); err != nil {
		h.respondError(c, log, err, "document")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get application health status
// @Description Independent probes of the catalog, the object store and the cache.
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthReport
// @Failure 503 {object} models.HealthReport
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	report := h.diagnostics.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status != models.HealthHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// @Summary Get object store details
// @Tags System
// @Produce json
// @Success 200 {object} models.ProbeResult
// @Router /system/storage [get]
func (h *Handler) storageInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.diagnostics.StorageInfo(c.Request.Context()))
}

// @Summary Get upload limits
// @Tags System
// @Produce json
// @Success 200 {object} LimitsResponse
// @Router /system/limits [get]
func (h *Handler) limits(c *gin.Context) {
	severities := make([]string, 0, len(models.Severities()))
	for _, s := range models.Severities() {
		severities = append(severities, string(s))
	}
	maxSize := h.classifier.MaxSize()
	c.JSON(http.StatusOK, LimitsResponse{
		MaxFileSizeBytes: maxSize,
		MaxFileSize:      humanize.IBytes(uint64(maxSize)),
		Severities:       severities,
		Categories:       h.classifier.Categories(),
	})
}

// formFiles возвращает файлы поля documents; форма без файлов допустима
func (h *Handler) formFiles(c *gin.Context) ([]models.UploadFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	return FileHeadersToUploads(form.File[documentsField]), nil
}

// respondError переводит класс ошибки сервиса в HTTP-статус
func (h *Handler) respondError(c *gin.Context, log *logrus.Entry, err error, entity string) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.Is(err, models.ErrNotFound):
		log.WithError(err).Warn(entity + " not found")
		c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
	case errors.Is(err, models.ErrStore):
		log.WithError(err).Error("Object store failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "object store unavailable"})
	case errors.Is(err, models.ErrCatalog):
		log.WithError(err).Error("Catalog failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
	default:
		log.WithError(err).Error("Unexpected service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func uploaderOrDefault(uploadedBy string) string {
	if uploadedBy == "" {
		return defaultUploader
	}
	return uploadedBy
}

// contentDisposition кодирует имя по RFC 2231, если оно не ASCII
func contentDisposition(filename string) string {
	value := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if value == "" {
		return "attachment; filename=" + strconv.Quote(storage.SafeFilename(filename))
	}
	return value
}
