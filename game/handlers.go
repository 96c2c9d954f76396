package game

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type GameHandler struct {
	registry *Registry
}

func NewGameHandler(registry *Registry) *GameHandler {
	return &GameHandler{registry: registry}
}

// WebsocketHandler upgrades the connection and starts the client pumps.
// Everything after the upgrade happens over the event protocol.
func (h *GameHandler) WebsocketHandler(ctx *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "ip", ctx.ClientIP(), "err", err)
		return
	}

	client := NewClient(h.registry, NewWebsocketConnection(conn))
	go client.ReadPump()
	go client.WritePump()
}

// GetSessionsHandler lists the joinable session directory.
func (h *GameHandler) GetSessionsHandler(ctx *gin.Context) {
	sessions := h.registry.ListSessions(ctx.Request.Context())
	if sessions == nil {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
