package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/assistant"
	"github.com/thereayou/studdy-space/internal/database"
	"github.com/thereayou/studdy-space/internal/handlers/dto"
	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/realtime"
	"github.com/thereayou/studdy-space/internal/state"
	"github.com/thereayou/studdy-space/internal/websocket"
)

// SyncHandler превращает действия клиента в мутации состояния комнаты и
// события шины. Путь одинаковый для всех действий: локальная мутация и
// запись через Store сессии, затем публикация; редьюсеры остальных
// клиентов (и свой собственный, идемпотентно) применяют событие.
type SyncHandler struct {
	db        *database.Database
	manager   *state.Manager
	bus       realtime.Bus
	assistant *assistant.Assistant
}

func NewSyncHandler(db *database.Database, manager *state.Manager, bus realtime.Bus, ai *assistant.Assistant) *SyncHandler {
	return &SyncHandler{
		db:        db,
		manager:   manager,
		bus:       bus,
		assistant: ai,
	}
}

func (h *SyncHandler) HandleMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeChatMessage:
		return h.handleChat(client, msg)

	case websocket.TypeFileUpsert:
		return h.handleFile(client, msg)

	case websocket.TypeDrawing:
		return h.handleDrawing(client, msg)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		return nil
	}
}

func (h *SyncHandler) session(client *websocket.Client, msg *websocket.Message) (*state.Session, error) {
	if msg.RoomID == nil {
		return nil, websocket.ErrInvalidMessage
	}
	if !client.IsInRoom(*msg.RoomID) {
		return nil, websocket.ErrUserNotInRoom
	}
	sess, ok := h.manager.Get(*msg.RoomID)
	if !ok {
		return nil, websocket.ErrRoomNotFound
	}
	return sess, nil
}

func (h *SyncHandler) handleChat(client *websocket.Client, msg *websocket.Message) error {
	sess, err := h.session(client, msg)
	if err != nil {
		return err
	}

	var payload dto.ChatPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return err
	}
	if payload.Text == "" {
		return websocket.ErrInvalidMessage
	}

	user, err := h.db.GetUser(client.UserID.String())
	if err != nil {
		return fmt.Errorf("failed to get sender: %w", err)
	}

	ctx := context.Background()
	message := &models.ChatMessage{
		ID:         uuid.New(),
		RoomID:     *msg.RoomID,
		SenderID:   client.UserID,
		SenderName: user.Username,
		Text:       payload.Text,
		CreatedAt:  time.Now(),
	}

	if err := sess.Store.AppendMessage(ctx, message); err != nil {
		return err
	}
	h.bus.Publish(realtime.MessageSent(*msg.RoomID, message))

	go h.db.UpdateLastSeen(client.UserID.String())

	if assistant.Triggered(payload.Text) {
		go h.replyAsAssistant(sess, message)
	}

	return nil
}

// replyAsAssistant добавляет ответ ассистента вторым сообщением после
// сообщения пользователя
func (h *SyncHandler) replyAsAssistant(sess *state.Session, msg *models.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	room := sess.Store.Room()
	if room == nil {
		return
	}

	reply, err := h.assistant.Reply(ctx, room, msg)
	if err != nil {
		log.Printf("Assistant reply failed: %v", err)
		return
	}
	if reply == nil {
		return
	}

	if err := sess.Store.AppendMessage(ctx, reply); err != nil {
		log.Printf("Failed to save assistant reply: %v", err)
		return
	}
	h.bus.Publish(realtime.MessageSent(room.ID, reply))
}

func (h *SyncHandler) handleFile(client *websocket.Client, msg *websocket.Message) error {
	sess, err := h.session(client, msg)
	if err != nil {
		return err
	}

	var payload dto.FilePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return err
	}
	if payload.Type == "" {
		return websocket.ErrInvalidMessage
	}

	file := &models.FileContent{
		ID:           payload.ID,
		RoomID:       *msg.RoomID,
		Name:         payload.Name,
		Type:         payload.Type,
		Content:      payload.Content,
		LastModified: time.Now(),
		AuthorID:     client.UserID,
	}

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
		if file.IsWhiteboard() && file.Name == "" {
			file.Name = nextBoardName(sess.Store.Room())
		}
	}

	if err := sess.Store.UpsertFile(context.Background(), file); err != nil {
		return err
	}
	h.bus.Publish(realtime.FileUpdate(*msg.RoomID, file))

	return nil
}

// handleDrawing снимок доски уходит только в шину: содержимое файла
// персистится отдельным file_update при явном сохранении
func (h *SyncHandler) handleDrawing(client *websocket.Client, msg *websocket.Message) error {
	if _, err := h.session(client, msg); err != nil {
		return err
	}

	var payload dto.DrawingPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return err
	}
	if payload.FileID == uuid.Nil {
		return websocket.ErrInvalidMessage
	}

	h.bus.Publish(realtime.DrawingSync(*msg.RoomID, payload.FileID, payload.DataURL))
	return nil
}

func nextBoardName(room *models.Room) string {
	n := 1
	if room != nil {
		for _, f := range room.Files {
			if f.IsWhiteboard() {
				n++
			}
		}
	}
	return fmt.Sprintf("Board %d", n)
}
