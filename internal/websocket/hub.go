package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/realtime"
)

// MessageType определяет типы сообщений
type MessageType string

const (
	// Системные типы
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"

	// Просмотр комнаты
	TypeRoomJoin  MessageType = "room_join"
	TypeRoomLeave MessageType = "room_leave"
	TypeRoomUsers MessageType = "room_users"

	// Действия синхронизации от клиента
	TypeChatMessage MessageType = "message"
	TypeFileUpsert  MessageType = "file_update"
	TypeDrawing     MessageType = "drawing_sync"

	// Событие шины изменений для клиентов
	TypeSync MessageType = "sync"
)

type Message struct {
	Type      MessageType     `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты по UserID (один пользователь может иметь несколько соединений)
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Клиенты, просматривающие комнату
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	// Вызываются на каждого зрителя при входе и выходе из комнаты.
	// Сервер вешает сюда сессию синхронизации, счетчик зрителей
	// ведет она. Вызовы всегда вне h.mu: открытие сессии ходит в
	// хранилище и не должно останавливать hub.
	OnRoomOpen  func(roomID uuid.UUID) error
	OnRoomClose func(roomID uuid.UUID)

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:       make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop останавливает hub
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		client.Conn.Close()
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client

	log.Printf("Client registered: %s (User: %s)", client.ID, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	var left []uuid.UUID
	if _, ok := h.clients[client.ID]; ok {
		for roomID := range client.Rooms {
			if h.removeFromRoomUnsafe(client, roomID) {
				left = append(left, roomID)
			}
		}

		if userClients, ok := h.userClients[client.UserID]; ok {
			delete(userClients, client.ID)
			if len(userClients) == 0 {
				delete(h.userClients, client.UserID)
			}
		}

		delete(h.clients, client.ID)
		close(client.Send)

		log.Printf("Client unregistered: %s (User: %s)", client.ID, client.UserID)
	}
	h.mu.Unlock()

	if h.OnRoomClose != nil {
		for _, roomID := range left {
			h.OnRoomClose(roomID)
		}
	}
}

// JoinRoom добавляет клиента к просмотру комнаты. Если сессию
// синхронизации открыть не удалось, клиент в комнату не попадает.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) error {
	if client.IsInRoom(roomID) {
		return nil
	}

	if h.OnRoomOpen != nil {
		if err := h.OnRoomOpen(roomID); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][client.ID] = client
	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()

	// Отправляем список зрителей новому клиенту
	h.sendRoomUsers(client, roomID)
	return nil
}

// LeaveRoom убирает клиента из просмотра комнаты
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	removed := h.removeFromRoomUnsafe(client, roomID)
	h.mu.Unlock()

	if removed && h.OnRoomClose != nil {
		h.OnRoomClose(roomID)
	}
}

func (h *Hub) removeFromRoomUnsafe(client *Client, roomID uuid.UUID) bool {
	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room[client.ID]; !ok {
		return false
	}

	delete(room, client.ID)
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()

	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}

// BroadcastEvent доставляет событие шины всем клиентам, просматривающим
// комнату события. Подписывается на шину при старте сервера.
func (h *Hub) BroadcastEvent(event realtime.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal sync event: %v", err)
		return
	}

	msg := Message{
		Type:      TypeSync,
		RoomID:    &event.RoomID,
		Data:      data,
		Timestamp: time.Now(),
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.SendToRoom(event.RoomID, raw)
}

// SendToUser отправляет сообщение всем соединениям пользователя
func (h *Hub) SendToUser(userID uuid.UUID, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.userClients[userID]; ok {
		for _, client := range clients {
			select {
			case client.Send <- message:
			default:
				log.Printf("Client %s send channel full", client.ID)
			}
		}
	}
}

// SendToRoom отправляет сообщение всем зрителям комнаты
func (h *Hub) SendToRoom(roomID uuid.UUID, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, ok := h.rooms[roomID]; ok {
		for _, client := range room {
			select {
			case client.Send <- message:
			default:
				log.Printf("Client %s send channel full", client.ID)
			}
		}
	}
}

func (h *Hub) sendRoomUsers(client *Client, roomID uuid.UUID) {
	users := make([]uuid.UUID, 0)

	if room, ok := h.rooms[roomID]; ok {
		userMap := make(map[uuid.UUID]bool)
		for _, c := range room {
			userMap[c.UserID] = true
		}

		for userID := range userMap {
			users = append(users, userID)
		}
	}

	msg := Message{
		Type:      TypeRoomUsers,
		RoomID:    &roomID,
		UserID:    client.UserID,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(users); err == nil {
		msg.Data = data
		if msgData, err := json.Marshal(msg); err == nil {
			select {
			case client.Send <- msgData:
			default:
				log.Printf("Failed to send room users to client %s", client.ID)
			}
		}
	}
}

// GetRoomUsers возвращает пользователей, просматривающих комнату
func (h *Hub) GetRoomUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userMap := make(map[uuid.UUID]bool)
	if room, ok := h.rooms[roomID]; ok {
		for _, client := range room {
			userMap[client.UserID] = true
		}
	}

	users := make([]uuid.UUID, 0, len(userMap))
	for userID := range userMap {
		users = append(users, userID)
	}
	return users
}
