package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ClientIDHeader identifies the favorites owner
const ClientIDHeader = "X-Client-ID"

// CORS returns a CORS middleware open to any origin
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", ClientIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Cache"},
		AllowCredentials: false, // 开放访问模式下必须关闭，否则浏览器会拒绝 * 来源
	})
}
