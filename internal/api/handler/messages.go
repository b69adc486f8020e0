package handler

import (
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/models"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// postMessageRequest is the body of POST /api/chats/:chatId/messages.
type postMessageRequest struct {
	Type      models.MessageKind `json:"type" binding:"omitempty,oneof=user system"`
	Sender    string             `json:"sender" binding:"max=128"`
	Timestamp time.Time          `json:"timestamp"`
	Content   string             `json:"content" binding:"required,max=4096"`
}

// PostMessage stores a message and delivers it live to the chat's members,
// exactly like a chat event from a WebSocket. System messages need the
// operator token.
func (h *Handler) PostMessage(c *gin.Context) {
	chatID := c.Param("chatId")

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message"})
		return
	}

	var (
		msg *models.Message
		err error
	)
	if req.Type == models.KindSystem {
		if !h.isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "System messages need the admin token"})
			return
		}
		msg, err = h.Engine.PostSystem(c.Request.Context(), chatID, req.Content)
	} else {
		anonID, ok := h.requestAnonID(c)
		if !ok {
			return
		}
		sender := req.Sender
		if anonID != "" {
			sender = anonID
		}
		if sender == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Sender required"})
			return
		}
		msg, err = h.Engine.OnSend(c.Request.Context(), chathub.SendRequest{
			ChatID:    chatID,
			Sender:    sender,
			Timestamp: req.Timestamp,
			Content:   req.Content,
		})
	}
	if err != nil {
		// The engine has logged the cause.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Message not stored"})
		return
	}

	c.JSON(http.StatusCreated, msg)
}
