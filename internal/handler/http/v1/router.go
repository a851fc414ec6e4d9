package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Изменяющие маршруты требуют API-ключ
	auth := APIKeyAuthMiddleware(h.cfg, h.logger)

	// Маршруты для управления инцидентами
	incidents := api.Group("/incidents")
	{
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.GET("/:id/documents", h.listDocuments)
		incidents.POST("", auth, h.createIncident)
		incidents.POST("/:id/documents", auth, h.attachDocuments)
		incidents.DELETE("/:id", auth, h.deleteIncident)
	}

	// Маршруты для документов
	documents := api.Group("/documents")
	{
		documents.GET("/:id", h.getDocument)
		documents.GET("/:id/download", h.downloadDocument)
		documents.DELETE("/:id", auth, h.deleteDocument)
	}

	// Системные маршруты
	system := api.Group("/system")
	{
		system.GET("/health", h.healthCheck)
		system.GET("/storage", h.storageInfo)
		system.GET("/limits", h.limits)
	}
}
