package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"movie-discovery-service/internal/model"

	"github.com/gin-gonic/gin"
)

// AdminAuth guards the admin routes with a static API key.
// An empty apiKey disables the check.
func AdminAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		// 支持 "Bearer <token>"、"ApiKey <token>" 以及 ?api_key= 查询参数
		token := c.GetHeader("Authorization")
		if token != "" {
			token = strings.TrimPrefix(token, "Bearer ")
			token = strings.TrimPrefix(token, "ApiKey ")
		} else {
			token = c.Query("api_key")
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.APIResponse{
				Code:  http.StatusUnauthorized,
				Error: "未授权：缺少 API Key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, model.APIResponse{
				Code:  http.StatusForbidden,
				Error: "禁止访问：API Key 无效",
			})
			return
		}

		c.Next()
	}
}
