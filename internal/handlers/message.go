package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/middleware"
	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/storage"
)

const defaultHistoryLimit = 50

// MessageHistory пагинированная история комнаты, реализуют оба бэкенда
type MessageHistory interface {
	GetRoomMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeID *uuid.UUID) ([]models.ChatMessage, error)
}

type MessageHandler struct {
	store   storage.RoomStore
	history MessageHistory
}

func NewMessageHandler(store storage.RoomStore, history MessageHistory) *MessageHandler {
	return &MessageHandler{store: store, history: history}
}

// GetRoomMessages возвращает историю чата комнаты, старые сообщения первыми
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, err := h.store.FindByID(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if !room.HasMember(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var beforeID *uuid.UUID
	if raw := c.Query("before"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before id"})
			return
		}
		beforeID = &parsed
	}

	messages, err := h.history.GetRoomMessages(c.Request.Context(), roomID, limit, beforeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
