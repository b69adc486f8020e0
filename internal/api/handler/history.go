package handler

import (
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListMessages returns a page of a chat's history, newest first.
// Query: page (default 0) and limit (default 30, at most 100).
func (h *Handler) ListMessages(c *gin.Context) {
	chatID := c.Param("chatId")

	page, err := queryInt(c, "page", 0)
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	limit, err := queryInt(c, "limit", config.DefaultHistoryLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	limit = min(limit, config.MaxHistoryLimit)

	var messages []models.Message
	if page == 0 {
		messages, err = h.Store.RecentMessages(c.Request.Context(), chatID, limit)
	} else {
		messages, err = h.Store.ListMessages(c.Request.Context(), chatID, page, limit)
	}
	if err != nil {
		h.log.Error("Failed to list messages", "room", chatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetMessage returns one stored message of the chat.
func (h *Handler) GetMessage(c *gin.Context) {
	chatID := c.Param("chatId")
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id"})
		return
	}

	msg, err := h.Store.FetchMessageByID(c.Request.Context(), uint(id))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && msg.ChatID != chatID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	if err != nil {
		h.log.Error("Failed to get message", "room", chatID, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get message"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
