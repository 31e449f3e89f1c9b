package handler

import (
	"net/http"
	"strconv"

	"movie-discovery-service/internal/service"

	"github.com/gin-gonic/gin"
)

// LinksHandler resolves catalog page and poster links. It never calls
// the catalog.
type LinksHandler struct {
	tmdbService *service.TMDBService
}

// NewLinksHandler creates a new LinksHandler
func NewLinksHandler(tmdb *service.TMDBService) *LinksHandler {
	return &LinksHandler{tmdbService: tmdb}
}

// GetDownload returns the TMDB page of a movie
// GET /api/v1/download?id=603
func (h *LinksHandler) GetDownload(c *gin.Context) {
	id, err := strconv.Atoi(c.Query("id"))
	if err != nil || id <= 0 {
		badRequest(c, "缺少或无效的 id 参数")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.tmdbService.MovieURL(id)})
}

// GetPoster resolves a poster path for an image size
// GET /api/v1/poster?path=/abc.jpg&size=w342
func (h *LinksHandler) GetPoster(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		badRequest(c, "缺少 path 参数")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.tmdbService.PosterURL(path, c.Query("size"))})
}
