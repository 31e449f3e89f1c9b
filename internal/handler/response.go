package handler

import (
	"errors"
	"net/http"

	"movie-discovery-service/internal/metrics"
	"movie-discovery-service/internal/middleware"
	"movie-discovery-service/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, model.APIResponse{
		Code:  http.StatusBadRequest,
		Error: msg,
	})
}

// catalogError maps catalog failures onto façade status codes:
// missing credential → 503, network or upstream failure → 502
func catalogError(c *gin.Context, err error) {
	if errors.Is(err, model.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, model.APIResponse{
			Code:  http.StatusServiceUnavailable,
			Error: "TMDB API key not configured",
		})
		return
	}

	if fe, ok := model.AsFetchError(err); ok {
		log.Warn().Err(err).Str("reason", fe.Reason.String()).Msg("❌ TMDB 请求失败")
		c.JSON(http.StatusBadGateway, model.APIResponse{
			Code:  http.StatusBadGateway,
			Error: fe.Error(),
		})
		return
	}

	log.Error().Err(err).Msg("Unexpected catalog error")
	c.JSON(http.StatusInternalServerError, model.APIResponse{
		Code:  http.StatusInternalServerError,
		Error: err.Error(),
	})
}

// markCache flags the response for the metrics middleware and the client
func markCache(c *gin.Context, kind string, hit bool) {
	c.Set(middleware.CacheHitKey, hit)
	if hit {
		c.Header("X-Cache", "HIT")
		metrics.CacheHitsTotal.WithLabelValues(kind).Inc()
	} else {
		c.Header("X-Cache", "MISS")
		metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
	}
}
