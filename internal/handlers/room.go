package handlers

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/middleware"
	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/realtime"
	"github.com/thereayou/studdy-space/internal/storage"
	"github.com/thereayou/studdy-space/internal/websocket"
)

type RoomHandler struct {
	store storage.RoomStore
	bus   realtime.Bus
	hub   *websocket.Hub
}

func NewRoomHandler(store storage.RoomStore, bus realtime.Bus, hub *websocket.Hub) *RoomHandler {
	return &RoomHandler{store: store, bus: bus, hub: hub}
}

// generateCode генерирует 6-символьный код приглашения
func generateCode() string {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, models.CodeLength)
	rand.Read(b)
	for i := range b {
		b[i] = letters[b[i]%byte(len(letters))]
	}
	return string(b)
}

// freeCode подбирает свободный код приглашения. Коллизия — повторная
// генерация, любая другая ошибка бэкенда прерывает подбор.
func freeCode(ctx context.Context, store storage.RoomStore) (string, error) {
	for {
		code := generateCode()
		_, err := store.FindByCode(ctx, code)
		if errors.Is(err, storage.ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// CreateRoom создает новую комнату с уникальным кодом приглашения
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := freeCode(c.Request.Context(), h.store)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	room := &models.Room{
		ID:        uuid.New(),
		Code:      code,
		Name:      req.Name,
		OwnerID:   userID,
		CreatedAt: time.Now(),
		Members:   []models.User{{ID: userID}},
	}

	if err := h.store.Create(c.Request.Context(), room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":   room.ID,
		"code": room.Code,
		"name": room.Name,
	})
}

// JoinRoom вступление по коду приглашения, регистр кода не важен.
// Повторное вступление — no-op с тем же ответом.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Code string `json:"code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.store.FindByCode(c.Request.Context(), req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		return
	}

	if !room.HasMember(userID) {
		if err := h.store.AddMember(c.Request.Context(), room.ID, userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
			return
		}
		h.bus.Publish(realtime.MemberJoined(room.ID, userID))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "joined room",
		"room_id": room.ID,
	})
}

// RenameRoom переименование комнаты, доступно только владельцу
func (h *RoomHandler) RenameRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.store.FindByID(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if room.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can rename the room"})
		return
	}

	if err := h.store.UpdateName(c.Request.Context(), roomID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   roomID,
		"name": req.Name,
	})
}

// GetRoom возвращает комнату целиком: файлы, сообщения, участники
func (h *RoomHandler) GetRoom(c *gin.Context) {
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

	response := formatRoomResponse(room)
	response["online_users"] = h.hub.GetRoomUsers(room.ID)

	c.JSON(http.StatusOK, response)
}

// GetMyRooms получает список комнат пользователя
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	rooms, err := h.store.RoomsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}

	roomsResponse := make([]gin.H, len(rooms))
	for i, room := range rooms {
		resp := formatRoomResponse(&room)
		resp["online_count"] = len(h.hub.GetRoomUsers(room.ID))
		roomsResponse[i] = resp
	}

	c.JSON(http.StatusOK, gin.H{"rooms": roomsResponse})
}

func formatRoomResponse(room *models.Room) gin.H {
	members := make([]gin.H, len(room.Members))
	for i, member := range room.Members {
		members[i] = gin.H{
			"id":         member.ID,
			"username":   member.Username,
			"avatar_url": member.AvatarURL,
		}
	}

	return gin.H{
		"id":         room.ID,
		"code":       room.Code,
		"name":       room.Name,
		"owner_id":   room.OwnerID,
		"created_at": room.CreatedAt,
		"members":    members,
		"files":      room.Files,
		"messages":   room.Messages,
	}
}
