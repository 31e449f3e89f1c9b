package handler

import (
	"net/http"
	"strings"

	"movie-discovery-service/internal/discovery"
	"movie-discovery-service/internal/model"
	"movie-discovery-service/internal/repository"
	"movie-discovery-service/internal/service"

	"github.com/gin-gonic/gin"
)

// SuggestionsHandler serves lightweight title suggestions
type SuggestionsHandler struct {
	tmdbService *service.TMDBService
	cache       *repository.Cache
	ttl         *CacheTTLConfig
}

// NewSuggestionsHandler creates a new SuggestionsHandler
func NewSuggestionsHandler(tmdb *service.TMDBService, cache *repository.Cache, ttl *CacheTTLConfig) *SuggestionsHandler {
	if ttl == nil {
		ttl = DefaultCacheTTL()
	}
	return &SuggestionsHandler{tmdbService: tmdb, cache: cache, ttl: ttl}
}

// GetSuggestions returns up to seven suggestions for query. The first
// search page is shared with the search cache.
// GET /api/v1/suggestions?query=bat
func (h *SuggestionsHandler) GetSuggestions(c *gin.Context) {
	query := strings.TrimSpace(c.Query(discovery.ParamQuery))
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"results": []model.Suggestion{}})
		return
	}

	req := discovery.BuildRequest(query, model.FilterState{Language: c.Query(discovery.ParamLanguage)}, 1)
	page, hit, err := fetchCached(c.Request.Context(), h.cache, h.tmdbService, req, h.ttl.Search)
	if err != nil {
		catalogError(c, err)
		return
	}
	markCache(c, "suggestions", hit)

	c.JSON(http.StatusOK, gin.H{"results": discovery.Suggestions(page)})
}
