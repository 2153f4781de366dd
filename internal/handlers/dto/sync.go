package dto

import (
	"github.com/google/uuid"
)

// ChatPayload входящее сообщение чата
type ChatPayload struct {
	Text string `json:"text"`
}

// FilePayload входящий файл: загрузка, создание доски или правка.
// ID пустой для новых файлов.
type FilePayload struct {
	ID      uuid.UUID `json:"id,omitempty"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Content string    `json:"content"`
}

// DrawingPayload промежуточный снимок доски
type DrawingPayload struct {
	FileID  uuid.UUID `json:"file_id"`
	DataURL string    `json:"data_url"`
}
