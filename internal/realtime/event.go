package realtime

import (
	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/models"
)

// EventType определяет виды событий синхронизации
type EventType string

const (
	// Файл создан или заменен целиком
	EventFileUpdate EventType = "FILE_UPDATE"
	// Сообщение отправлено в чат
	EventMessageSent EventType = "MESSAGE_SENT"
	// Промежуточный снимок доски (не персистится редьюсером)
	EventDrawingSync EventType = "DRAWING_SYNC"
	// Участник вступил в комнату
	EventMemberJoined EventType = "MEMBER_JOINED"
)

// Event закрытое объединение событий шины. Type определяет, какое из
// опциональных полей заполнено; обработчики матчатся по Type без
// ревизии содержимого. Неизвестный Type молча игнорируется.
type Event struct {
	Type   EventType `json:"type"`
	RoomID uuid.UUID `json:"room_id"`

	// FILE_UPDATE
	File *models.FileContent `json:"file,omitempty"`
	// MESSAGE_SENT
	Message *models.ChatMessage `json:"message,omitempty"`
	// DRAWING_SYNC
	FileID  uuid.UUID `json:"file_id,omitempty"`
	DataURL string    `json:"data_url,omitempty"`
	// MEMBER_JOINED
	UserID uuid.UUID `json:"user_id,omitempty"`
}

func FileUpdate(roomID uuid.UUID, file *models.FileContent) Event {
	return Event{Type: EventFileUpdate, RoomID: roomID, File: file}
}

func MessageSent(roomID uuid.UUID, msg *models.ChatMessage) Event {
	return Event{Type: EventMessageSent, RoomID: roomID, Message: msg}
}

func DrawingSync(roomID, fileID uuid.UUID, dataURL string) Event {
	return Event{Type: EventDrawingSync, RoomID: roomID, FileID: fileID, DataURL: dataURL}
}

func MemberJoined(roomID, userID uuid.UUID) Event {
	return Event{Type: EventMemberJoined, RoomID: roomID, UserID: userID}
}
