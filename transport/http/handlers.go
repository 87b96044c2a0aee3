package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/service"
)

// AuthHandlers contains HTTP handlers for the wallet handshake endpoints
type AuthHandlers struct {
	handshake *service.HandshakeService
	manifest  core.Manifest
	logger    *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(handshake *service.HandshakeService, manifest core.Manifest, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		handshake: handshake,
		manifest:  manifest,
		logger:    logger,
	}
}

// Manifest serves the app descriptor wallets use to identify the bridge
func (h *AuthHandlers) Manifest(c *gin.Context) {
	c.JSON(http.StatusOK, h.manifest)
}

// GenerateAuthLink issues a wallet connect link for a chat
func (h *AuthHandlers) GenerateAuthLink(c *gin.Context) {
	chatID := c.Param("chat_id")

	authURL, err := h.handshake.IssueAuthLink(c.Request.Context(), chatID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to generate auth link"

		switch {
		case errors.Is(err, core.ErrInvalidIdentity):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid chat_id"
		case errors.Is(err, core.ErrCapabilityUnavailable):
			errorMsg = "Connector not initialized"
		}

		h.logger.ErrorContext(c.Request.Context(), "generate auth link failed", "chat_id", chatID, "error", err)
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// AuthCallback completes a handshake when the wallet app redirects back
func (h *AuthHandlers) AuthCallback(c *gin.Context) {
	chatID := c.Query("chat_id")
	state := c.Query("state")
	proof := c.Query("ton_proof")

	resp, err := h.handshake.CompleteAuth(c.Request.Context(), chatID, state, proof)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Internal server error"

		var backendErr *core.BackendError
		switch {
		case errors.Is(err, core.ErrCapabilityUnavailable):
			errorMsg = "Connector not initialized"
		case errors.Is(err, core.ErrInvalidState):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid state or chat_id"
		case errors.Is(err, core.ErrWalletVerificationFailed):
			statusCode = http.StatusBadRequest
			errorMsg = "Failed to verify wallet connection"
		case errors.As(err, &backendErr):
			statusCode = backendErr.Status
			errorMsg = "Backend error"
		}

		h.logger.ErrorContext(c.Request.Context(), "auth callback failed", "chat_id", chatID, "status", statusCode, "error", err)
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, "application/json; charset=utf-8", resp.Body)
}

// Health reports liveness and whether the connector is attached
func (h *AuthHandlers) Health(c *gin.Context) {
	connector := "initializing"
	if h.handshake.Ready() {
		connector = "ready"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connector": connector,
	})
}
