package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"movie-discovery-service/internal/discovery"
	"movie-discovery-service/internal/model"
	"movie-discovery-service/internal/repository"
	"movie-discovery-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxCatalogPage is the highest page TMDB will serve
const maxCatalogPage = 500

// SearchResponse is the body of GET /api/v1/search
type SearchResponse struct {
	Page           int                 `json:"page"`
	Results        []model.MovieRecord `json:"results"`
	TotalPages     int                 `json:"total_pages"`
	TotalResults   int                 `json:"total_results"`
	Mode           string              `json:"mode"`
	IgnoredFilters []string            `json:"ignored_filters,omitempty"`
}

// SearchHandler handles search and discover requests
type SearchHandler struct {
	tmdbService *service.TMDBService
	cache       *repository.Cache
	ttl         *CacheTTLConfig
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(tmdb *service.TMDBService, cache *repository.Cache, ttl *CacheTTLConfig) *SearchHandler {
	if ttl == nil {
		ttl = DefaultCacheTTL()
	}
	return &SearchHandler{
		tmdbService: tmdb,
		cache:       cache,
		ttl:         ttl,
	}
}

// Search handles search requests. A non-empty query selects the search
// endpoint; filters then apply to the returned page only.
// GET /api/v1/search?query=batman&page=1&primary_release_year=1989&sort_by=vote_average.desc
func (h *SearchHandler) Search(c *gin.Context) {
	filters, page, err := parseFilters(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	req := discovery.BuildRequest(c.Query(discovery.ParamQuery), filters, page)

	result, hit, err := fetchCached(c.Request.Context(), h.cache, h.tmdbService, req, h.ttl.Search)
	if err != nil {
		catalogError(c, err)
		return
	}
	markCache(c, "search", hit)

	state := discovery.Merge(discovery.State{}, *result, discovery.Replace, req.Post)

	resp := SearchResponse{
		Page:         result.Page,
		Results:      state.Records,
		TotalPages:   state.TotalPages,
		TotalResults: state.TotalResults,
		Mode:         req.Mode.String(),
	}
	if req.Post != nil && len(req.Post.IgnoredGenres) > 0 {
		resp.IgnoredFilters = []string{discovery.ParamGenres}
	}

	log.Debug().
		Str("request", req.String()).
		Int("results", len(resp.Results)).
		Bool("cache", hit).
		Msg("🔍 搜索完成")

	c.JSON(http.StatusOK, resp)
}

// DeleteSearchCache clears all cached catalog pages
// DELETE /api/v1/search
func (h *SearchHandler) DeleteSearchCache(c *gin.Context) {
	deleted, err := h.cache.DeletePattern(c.Request.Context(), searchCachePrefix+"*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	log.Info().Int64("deleted", deleted).Msg("🗑️ 搜索缓存已清除")

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Message: fmt.Sprintf("搜索缓存已清除 (%d 条)", deleted),
	})
}

// fetchCached serves a catalog page from Redis, fetching it on a miss.
// The raw page is cached so post-filters never leak between requests.
func fetchCached(ctx context.Context, cache *repository.Cache, tmdb *service.TMDBService, req discovery.Request, ttl time.Duration) (*model.PageResult, bool, error) {
	// 未配置时不查缓存，直接返回 503
	if !tmdb.IsConfigured() {
		return nil, false, model.ErrNotConfigured
	}

	var page model.PageResult
	hit, err := cache.Remember(ctx, searchCachePrefix+req.String(), ttl, &page, func(ctx context.Context) (interface{}, error) {
		return tmdb.FetchPage(ctx, req)
	})
	if err != nil {
		return nil, false, err
	}
	return &page, hit, nil
}

// parseFilters validates the discovery query parameters
func parseFilters(c *gin.Context) (model.FilterState, int, error) {
	var filters model.FilterState

	page := 1
	if raw := c.Query(discovery.ParamPage); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxCatalogPage {
			return filters, 0, fmt.Errorf("无效的 page 参数: %q", raw)
		}
		page = n
	}

	filters.Language = strings.TrimSpace(c.Query(discovery.ParamLanguage))

	if raw := c.Query(discovery.ParamGenres); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id <= 0 {
				return filters, 0, fmt.Errorf("无效的 with_genres 参数: %q", raw)
			}
			filters.GenreIDs = append(filters.GenreIDs, id)
		}
	}

	if raw := strings.TrimSpace(c.Query(discovery.ParamYear)); raw != "" {
		if !validYear(raw) {
			return filters, 0, fmt.Errorf("无效的 primary_release_year 参数: %q", raw)
		}
		filters.Year = raw
	}

	if raw := c.Query(discovery.ParamMinRating); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 10 {
			return filters, 0, fmt.Errorf("无效的 vote_average.gte 参数: %q", raw)
		}
		filters.MinRating = f
	}

	key, ok := model.ParseSortKey(c.Query(discovery.ParamSortBy))
	if !ok {
		return filters, 0, fmt.Errorf("无效的 sort_by 参数: %q", c.Query(discovery.ParamSortBy))
	}
	filters.SortKey = key

	return filters, page, nil
}

func validYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
