package handler

import (
	"context"
	"fmt"
	"net/http"

	"movie-discovery-service/internal/model"
	"movie-discovery-service/internal/repository"
	"movie-discovery-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// GenresHandler serves the catalog genre list
type GenresHandler struct {
	tmdbService *service.TMDBService
	cache       *repository.Cache
	ttl         *CacheTTLConfig
	language    string
}

// NewGenresHandler creates a new GenresHandler. defaultLanguage keys the
// cache when the caller does not pick a language.
func NewGenresHandler(tmdb *service.TMDBService, cache *repository.Cache, ttl *CacheTTLConfig, defaultLanguage string) *GenresHandler {
	if ttl == nil {
		ttl = DefaultCacheTTL()
	}
	return &GenresHandler{tmdbService: tmdb, cache: cache, ttl: ttl, language: defaultLanguage}
}

// GetGenres returns the genre list
// GET /api/v1/genres?language=en-US
func (h *GenresHandler) GetGenres(c *gin.Context) {
	if !h.tmdbService.IsConfigured() {
		catalogError(c, model.ErrNotConfigured)
		return
	}

	language := c.DefaultQuery("language", h.language)

	var genres []model.Genre
	hit, err := h.cache.Remember(c.Request.Context(), genresCachePrefix+language, h.ttl.Genres, &genres, func(ctx context.Context) (interface{}, error) {
		return h.tmdbService.Genres(ctx, language)
	})
	if err != nil {
		catalogError(c, err)
		return
	}
	markCache(c, "genres", hit)

	if genres == nil {
		genres = []model.Genre{}
	}
	c.JSON(http.StatusOK, model.GenreList{Genres: genres})
}

// DeleteGenresCache clears the cached genre lists
// DELETE /api/v1/genres
func (h *GenresHandler) DeleteGenresCache(c *gin.Context) {
	deleted, err := h.cache.DeletePattern(c.Request.Context(), genresCachePrefix+"*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	log.Info().Int64("deleted", deleted).Msg("🗑️ 类型缓存已清除")

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Message: fmt.Sprintf("类型缓存已清除 (%d 条)", deleted),
	})
}
