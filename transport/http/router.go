package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(handshake *service.HandshakeService, manifest core.Manifest, logger *slog.Logger) *gin.Engine {
	logger = logger.With("component", "http")

	router := gin.New()
	router.Use(RequestLogger(logger), Recovery(logger))

	handlers := NewAuthHandlers(handshake, manifest, logger)

	router.GET("/manifest.json", handlers.Manifest)
	router.GET("/generate-auth-link/:chat_id", handlers.GenerateAuthLink)
	router.GET("/auth-callback", handlers.AuthCallback)
	router.GET("/healthz", handlers.Health)

	return router
}
