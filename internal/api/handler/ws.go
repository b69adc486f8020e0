package handler

import (
	"chatrelay/backend/internal/chathub"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin may connect; access control happens through tokens.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the HTTP connection and hands it to the relay.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	anonID, ok := h.requestAnonID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error to the client.
		h.log.Warn("Failed to upgrade connection", "error", err)
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Engine, h.log, anonID, h.cfg.SendBuffer, h.cfg.MaxMessageBytes)
	h.log.Info("Client connected", "handle", client.Handle(), "anon_id", anonID, "remote", conn.RemoteAddr().String())

	// The pumps run on their own goroutines and outlive this request.
	client.Run()
}
