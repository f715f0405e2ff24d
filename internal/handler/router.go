package handler

import (
	"net/http"
	"time"

	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/model"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config, chatHandler *ChatHandler) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS配置，预检请求直接返回 200 空响应
	corsConfig := cors.Config{
		AllowMethods:              cfg.CORS.AllowedMethods,
		AllowHeaders:              cfg.CORS.AllowedHeaders,
		ExposeHeaders:             cfg.CORS.ExposedHeaders,
		AllowCredentials:          cfg.CORS.AllowCredentials,
		MaxAge:                    time.Duration(cfg.CORS.MaxAge) * time.Second,
		OptionsResponseStatusCode: http.StatusOK,
	}
	if allowAllOrigins(cfg.CORS.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	if len(corsConfig.AllowMethods) == 0 {
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(corsConfig.AllowHeaders) == 0 {
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	}
	router.Use(cors.New(corsConfig))

	// 健康检查不走鉴权
	router.GET("/health", chatHandler.Health)

	// OpenAI 兼容API路由
	v1 := router.Group("/v1")
	v1.Use(APIKeyAuth(cfg.Gateway.APIKey))
	{
		v1.POST("/chat/completions", chatHandler.ChatCompletions)
		v1.GET("/models", chatHandler.Models)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Not found",
				Type:    "invalid_request",
			},
		})
	})

	return router
}

func allowAllOrigins(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
