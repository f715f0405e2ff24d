package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyAuth Bearer 鉴权中间件。未配置 apiKey 时放行所有请求
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"message": "Missing authorization header",
					"type":    "invalid_request",
				},
			})
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"message": "Invalid API key",
					"type":    "invalid_api_key",
				},
			})
			return
		}

		c.Next()
	}
}
