package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.NoticeEmitter, userID func() string, enabled bool) {
	if !enabled {
		return
	}

	router.POST("/debug/notice-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notice emitter not configured"})
			return
		}
		emitter.Notify(c.Request.Context(), telemetry.LevelInfo, "notice test "+requestIDFromContext(c), userID())
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
