package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter registers every route of the relay.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", h.Health)
	r.GET("/anonid", h.GetAnonID) // JWT for an anonymous identity
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api/chats/:chatId")
	api.GET("/messages", h.ListMessages)
	api.POST("/messages", h.PostMessage)
	api.GET("/messages/:id", h.GetMessage)

	return r
}

// Health reports liveness and how many rooms have members.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": h.Engine.Registry().RoomCount()})
}
