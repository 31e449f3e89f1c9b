package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"movie-discovery-service/internal/metrics"
	"movie-discovery-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CacheHitKey is set on the gin context by handlers served from Redis
const CacheHitKey = "cache_hit"

// Metrics records every request in Prometheus and, for /api/ routes, in
// the Redis analytics. analytics may be nil.
func Metrics(analytics *repository.Analytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()

		// 使用路由模板分组，避免 /favorites/603/toggle 这类路径撑爆标签
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())

		if analytics == nil || !strings.HasPrefix(path, "/api/") {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		latency := float64(elapsed.Microseconds()) / 1000
		if err := analytics.RecordAPICall(ctx, path, status, latency, c.GetBool(CacheHitKey)); err != nil {
			log.Warn().Err(err).Msg("Failed to record analytics")
		}
	}
}
