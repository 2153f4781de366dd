package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TypeWhiteboard синтетический тип для досок: исходного файла нет,
// контент — снимок холста. Загруженные файлы хранят свой MIME-тип.
const TypeWhiteboard = "whiteboard"

type FileContent struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomID uuid.UUID `gorm:"index;not null" json:"room_id"`
	Name   string    `gorm:"not null" json:"name"`
	Type   string    `gorm:"not null" json:"type"`
	// Текст для текстовых типов, data URL (base64) для изображений,
	// PDF и снимков доски.
	Content      string    `gorm:"type:text" json:"content"`
	LastModified time.Time `json:"last_modified"`
	AuthorID     uuid.UUID `gorm:"not null" json:"author_id"`
}

func (f *FileContent) IsWhiteboard() bool {
	return f.Type == TypeWhiteboard
}

// IsEditable текстовые файлы редактируются в редакторе,
// остальные заменяются только целиком
func (f *FileContent) IsEditable() bool {
	return strings.HasPrefix(f.Type, "text/")
}
