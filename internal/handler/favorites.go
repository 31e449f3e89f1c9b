package handler

import (
	"net/http"
	"regexp"
	"strconv"

	"movie-discovery-service/internal/discovery"
	"movie-discovery-service/internal/middleware"
	"movie-discovery-service/internal/model"
	"movie-discovery-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultOwner = "default"

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// FavoritesHandler manages per-client favorites. The owner comes from the
// X-Client-ID header. It keeps no per-owner state; toggles are atomic in
// Redis.
type FavoritesHandler struct {
	stores *repository.RedisFavorites
}

// NewFavoritesHandler creates a new FavoritesHandler
func NewFavoritesHandler(stores *repository.RedisFavorites) *FavoritesHandler {
	return &FavoritesHandler{stores: stores}
}

func (h *FavoritesHandler) favoritesFor(c *gin.Context) (*discovery.Favorites, bool) {
	owner := c.GetHeader(middleware.ClientIDHeader)
	if owner == "" {
		owner = defaultOwner
	}
	if !ownerPattern.MatchString(owner) {
		badRequest(c, "无效的 X-Client-ID")
		return nil, false
	}
	return discovery.NewFavorites(h.stores.For(owner)), true
}

func favoritesUnavailable(c *gin.Context, err error) {
	log.Warn().Err(err).Msg("Favorites store unavailable")
	c.JSON(http.StatusServiceUnavailable, model.APIResponse{
		Code:  http.StatusServiceUnavailable,
		Error: "收藏服务暂不可用",
	})
}

// List returns the favorite ids
// GET /api/v1/favorites
func (h *FavoritesHandler) List(c *gin.Context) {
	favs, ok := h.favoritesFor(c)
	if !ok {
		return
	}
	ids, err := favs.List(c.Request.Context())
	if err != nil {
		favoritesUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// Replace overwrites the favorite ids
// PUT /api/v1/favorites (body: {"ids": [603, 13]})
func (h *FavoritesHandler) Replace(c *gin.Context) {
	favs, ok := h.favoritesFor(c)
	if !ok {
		return
	}

	var body struct {
		IDs []int `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "无效的请求体")
		return
	}
	for _, id := range body.IDs {
		if id <= 0 {
			badRequest(c, "无效的 id: "+strconv.Itoa(id))
			return
		}
	}

	ids, err := favs.Replace(c.Request.Context(), body.IDs)
	if err != nil {
		favoritesUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// Toggle flips one id
// POST /api/v1/favorites/:id/toggle
func (h *FavoritesHandler) Toggle(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "无效的 id 参数")
		return
	}

	favs, ok := h.favoritesFor(c)
	if !ok {
		return
	}

	favorite, err := favs.Toggle(c.Request.Context(), id)
	if err != nil {
		favoritesUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"favorite": favorite,
	})
}
