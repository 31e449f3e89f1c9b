package handler

import (
	"net/http"
	"time"

	"movie-discovery-service/internal/model"
	"movie-discovery-service/internal/repository"
	"movie-discovery-service/internal/service"
	"movie-discovery-service/pkg/httpclient"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin-related endpoints
type AdminHandler struct {
	tmdbService *service.TMDBService
	httpClient  *httpclient.Client
	analytics   *repository.Analytics
	startedAt   time.Time
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(tmdb *service.TMDBService, client *httpclient.Client, analytics *repository.Analytics) *AdminHandler {
	return &AdminHandler{
		tmdbService: tmdb,
		httpClient:  client,
		analytics:   analytics,
		startedAt:   time.Now(),
	}
}

// GetStatus returns service status
// GET /api/v1/status
func (h *AdminHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"catalog_configured": h.tmdbService.IsConfigured(),
		"catalog_keys":       h.tmdbService.KeyCount(),
		"proxy_enabled":      h.httpClient.HasProxy(),
		"proxy_count":        h.httpClient.ProxyCount(),
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
	})
}

// GetAnalytics returns API analytics
// GET /api/v1/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	stats, err := h.analytics.GetOverallStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: stats,
	})
}

// GetEndpointStats returns stats for a specific endpoint
// GET /api/v1/analytics/endpoint?path=/api/v1/search
func (h *AdminHandler) GetEndpointStats(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		badRequest(c, "path parameter required")
		return
	}

	stats, err := h.analytics.GetAPIStats(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: stats,
	})
}

// ResetAnalytics resets all analytics data
// DELETE /api/v1/analytics
func (h *AdminHandler) ResetAnalytics(c *gin.Context) {
	if err := h.analytics.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Message: "所有统计数据已重置",
	})
}
