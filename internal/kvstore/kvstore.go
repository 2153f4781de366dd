// Package kvstore хранит всю коллекцию комнат сериализованной под одним
// ключом Redis. Каждая запись пересериализует коллекцию целиком, поиск по
// коду — линейный проход. Простая замена документному бэкенду для
// односерверных установок.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/storage"
)

const defaultKey = "studdy:rooms"

type Store struct {
	client *redis.Client
	key    string

	// Защищает цикл load-modify-save внутри процесса. Между процессами
	// записи гонятся и разрешаются как last-write-wins.
	mu sync.Mutex
}

func New(client *redis.Client, key string) *Store {
	if key == "" {
		key = defaultKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) loadAll(ctx context.Context) ([]models.Room, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("kvstore: load rooms: %w", err)
	}

	var rooms []models.Room
	if err := json.Unmarshal([]byte(raw), &rooms); err != nil {
		return nil, fmt.Errorf("kvstore: decode rooms: %w", err)
	}
	return rooms, nil
}

func (s *Store) saveAll(ctx context.Context, rooms []models.Room) error {
	raw, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("kvstore: encode rooms: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("kvstore: save rooms: %w", err)
	}
	return nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	code = strings.ToUpper(code)
	for i := range rooms {
		if rooms[i].Code == code {
			return &rooms[i], nil
		}
	}
	return nil, storage.ErrRoomNotFound
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range rooms {
		if rooms[i].ID == id {
			return &rooms[i], nil
		}
	}
	return nil, storage.ErrRoomNotFound
}

func (s *Store) Create(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.loadAll(ctx)
	if err != nil {
		return err
	}

	room.Code = strings.ToUpper(room.Code)
	rooms = append(rooms, *room)
	return s.saveAll(ctx, rooms)
}

func (s *Store) Replace(ctx context.Context, room *models.Room) error {
	return s.mutate(ctx, room.ID, func(stored *models.Room) {
		room.Code = strings.ToUpper(room.Code)
		*stored = *room
	})
}

func (s *Store) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return s.mutate(ctx, id, func(room *models.Room) {
		room.Name = name
	})
}

func (s *Store) AddMember(ctx context.Context, roomID, userID uuid.UUID) error {
	return s.mutate(ctx, roomID, func(room *models.Room) {
		if room.HasMember(userID) {
			return
		}
		room.Members = append(room.Members, models.User{ID: userID})
	})
}

func (s *Store) UpsertFile(ctx context.Context, roomID uuid.UUID, file *models.FileContent) error {
	return s.mutate(ctx, roomID, func(room *models.Room) {
		file.RoomID = roomID
		for i := range room.Files {
			if room.Files[i].ID == file.ID {
				room.Files[i] = *file
				return
			}
		}
		room.Files = append(room.Files, *file)
	})
}

func (s *Store) AppendMessage(ctx context.Context, roomID uuid.UUID, msg *models.ChatMessage) error {
	return s.mutate(ctx, roomID, func(room *models.Room) {
		msg.RoomID = roomID
		room.Messages = append(room.Messages, *msg)
	})
}

func (s *Store) RoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Room
	for i := range rooms {
		if rooms[i].HasMember(userID) {
			out = append(out, rooms[i])
		}
	}
	return out, nil
}

// GetRoomMessages сообщения комнаты с пагинацией, старые первыми.
// Вся последовательность уже в памяти, пагинация — срез по ней.
func (s *Store) GetRoomMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeID *uuid.UUID) ([]models.ChatMessage, error) {
	room, err := s.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	msgs := room.Messages
	if beforeID != nil {
		for i := range msgs {
			if msgs[i].ID == *beforeID {
				msgs = msgs[:i]
				break
			}
		}
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// mutate общий цикл: загрузить коллекцию, изменить комнату, сохранить всё.
func (s *Store) mutate(ctx context.Context, roomID uuid.UUID, fn func(*models.Room)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.loadAll(ctx)
	if err != nil {
		return err
	}

	for i := range rooms {
		if rooms[i].ID == roomID {
			fn(&rooms[i])
			return s.saveAll(ctx, rooms)
		}
	}
	return storage.ErrRoomNotFound
}
