package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/middleware"
)

type RouterDeps struct {
	Chat           *ChatHandler
	Health         *HealthHandler
	RateLimitRPS   float64
	RateLimitBurst int
}

func RegisterRoutes(r gin.IRouter, deps RouterDeps) {
	r.GET("/", deps.Health.Status)
	r.POST("/chat", middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst), deps.Chat.Chat)
}
