package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage неизменяемое сообщение чата.
// Имя отправителя денормализовано в момент отправки.
type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomID     uuid.UUID `gorm:"index;not null" json:"room_id"`
	SenderID   uuid.UUID `gorm:"not null" json:"sender_id"`
	SenderName string    `gorm:"not null" json:"sender_name"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	IsAI       bool      `gorm:"default:false" json:"is_ai,omitempty"`
}
