package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomStore контракт хранилища комнат. Две реализации:
// документная (Postgres, internal/database) и локальная
// (вся коллекция комнат под одним ключом Redis, internal/kvstore).
type RoomStore interface {
	// FindByCode ищет комнату по коду приглашения без учета регистра.
	FindByCode(ctx context.Context, code string) (*models.Room, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	UpdateName(ctx context.Context, id uuid.UUID, name string) error

	// Replace перезаписывает комнату целиком, включая файлы,
	// сообщения и участников.
	Replace(ctx context.Context, room *models.Room) error

	// AddMember добавляет участника аддитивно: конкурентные вызовы
	// для разных пользователей не теряют друг друга. Идемпотентен.
	AddMember(ctx context.Context, roomID, userID uuid.UUID) error

	// UpsertFile заменяет файл с тем же id целиком, иначе добавляет.
	UpsertFile(ctx context.Context, roomID uuid.UUID, file *models.FileContent) error

	// AppendMessage добавляет сообщение в конец последовательности.
	AppendMessage(ctx context.Context, roomID uuid.UUID, msg *models.ChatMessage) error

	// RoomsForUser возвращает комнаты, в которых состоит пользователь.
	RoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
}
