package models

import (
	"time"

	"github.com/google/uuid"
)

// CodeLength длина кода приглашения комнаты
const CodeLength = 6

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;not null;size:6" json:"code"`
	Name      string    `gorm:"not null" json:"name"`
	OwnerID   uuid.UUID `gorm:"not null" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`

	// Связи
	Members  []User        `gorm:"many2many:room_members" json:"members"`
	Files    []FileContent `gorm:"foreignKey:RoomID" json:"files"`
	Messages []ChatMessage `gorm:"foreignKey:RoomID" json:"messages"`
}

// HasMember проверяет, состоит ли пользователь в комнате
func (r *Room) HasMember(userID uuid.UUID) bool {
	for _, m := range r.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// FileByID возвращает файл комнаты по id, nil если не найден
func (r *Room) FileByID(fileID uuid.UUID) *FileContent {
	for i := range r.Files {
		if r.Files[i].ID == fileID {
			return &r.Files[i]
		}
	}
	return nil
}
