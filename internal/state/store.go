// Package state содержит ядро синхронизации комнаты: локальное состояние
// открытой комнаты и редьюсер, применяющий события шины изменений.
package state

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/storage"
)

// Store авторитетное состояние открытой комнаты для этого клиента.
// Каждая мутация сначала меняет локальную копию, затем персистит в
// бэкенд до возврата, поэтому перезагрузка всегда видит последнее
// локально примененное состояние.
type Store struct {
	mu    sync.RWMutex
	room  *models.Room
	store storage.RoomStore
}

func NewStore(repo storage.RoomStore) *Store {
	return &Store{store: repo}
}

// Load материализует комнату из бэкенда и делает ее текущей.
func (s *Store) Load(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.room = room
	s.mu.Unlock()

	return snapshot(room), nil
}

// Replace перезаписывает текущую комнату и ее зеркало целиком.
func (s *Store) Replace(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	s.room = snapshot(room)
	s.mu.Unlock()

	return s.store.Replace(ctx, room)
}

// Room снимок текущей комнаты, nil если комната не загружена.
func (s *Store) Room() *models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.room)
}

func (s *Store) RoomID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return uuid.Nil
	}
	return s.room.ID
}

// UpsertFile замена файла целиком по id, иначе добавление в конец.
// Побеждает последний примененный вызов, слияния полей нет.
// Аргумент не мутируется: событие шины после публикации читают
// несколько горутин одновременно.
func (s *Store) UpsertFile(ctx context.Context, file *models.FileContent) error {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return storage.ErrRoomNotFound
	}
	roomID := s.room.ID
	f := *file
	f.RoomID = roomID

	replaced := false
	for i := range s.room.Files {
		if s.room.Files[i].ID == f.ID {
			s.room.Files[i] = f
			replaced = true
			break
		}
	}
	if !replaced {
		s.room.Files = append(s.room.Files, f)
	}
	s.mu.Unlock()

	return s.store.UpsertFile(ctx, roomID, &f)
}

// AppendMessage добавляет сообщение в конец. Повторная доставка того же
// сообщения (самодоставка шины) отсекается по id.
func (s *Store) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return storage.ErrRoomNotFound
	}
	roomID := s.room.ID

	for i := range s.room.Messages {
		if s.room.Messages[i].ID == msg.ID {
			s.mu.Unlock()
			return nil
		}
	}

	m := *msg
	m.RoomID = roomID
	s.room.Messages = append(s.room.Messages, m)
	s.mu.Unlock()

	return s.store.AppendMessage(ctx, roomID, &m)
}

// AddMember идемпотентное добавление участника.
func (s *Store) AddMember(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return storage.ErrRoomNotFound
	}
	roomID := s.room.ID

	if s.room.HasMember(userID) {
		s.mu.Unlock()
		return nil
	}
	s.room.Members = append(s.room.Members, models.User{ID: userID})
	s.mu.Unlock()

	return s.store.AddMember(ctx, roomID, userID)
}

func snapshot(room *models.Room) *models.Room {
	if room == nil {
		return nil
	}
	out := *room
	out.Members = append([]models.User(nil), room.Members...)
	out.Files = append([]models.FileContent(nil), room.Files...)
	out.Messages = append([]models.ChatMessage(nil), room.Messages...)
	return &out
}
