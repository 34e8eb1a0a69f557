package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/oraclewatch/core/internal/api/websocket"
	"github.com/oraclewatch/core/internal/config"
	"github.com/oraclewatch/core/pkg/logger"

	"github.com/google/uuid"
)

type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
	logger   logger.Logger
	cfg      config.WebSocketConfig
}

func NewWebSocketHandler(hub *websocket.Hub, cfg config.WebSocketConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// TODO: tighten in prod (check Origin against CORS config)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
		cfg:    cfg,
	}
}

// GET /ws?streams=alerts,escalations,notifications - Live event stream
func (h *WebSocketHandler) HandleStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	streams := websocket.ParseStreams(c.DefaultQuery("streams", websocket.StreamAlerts))
	client := websocket.NewClient(h.hub, conn, uuid.NewString(), streams, h.cfg.SendBufferSize)
	client.Register()

	go client.WritePump(c.Request.Context())
	client.ReadPump()
}
