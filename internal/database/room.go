package database

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/storage"
)

// Коды хранятся в верхнем регистре, поиск нормализует ввод.
func (d *Database) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(code)).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrRoomNotFound
		}
		return nil, err
	}
	return d.FindByID(ctx, room.ID)
}

func (d *Database) FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Members").
		Preload("Files").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (d *Database) Create(ctx context.Context, room *models.Room) error {
	room.Code = strings.ToUpper(room.Code)
	return d.db.WithContext(ctx).Create(room).Error
}

// Replace перезапись комнаты вместе со связями
func (d *Database) Replace(ctx context.Context, room *models.Room) error {
	room.Code = strings.ToUpper(room.Code)
	return d.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(room).Error
}

func (d *Database) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	res := d.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", id).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrRoomNotFound
	}
	return nil
}

// AddMember аддитивное добавление в таблицу связей: два участника,
// вступающие одновременно, не затирают друг друга, повторное
// добавление того же пользователя — no-op.
func (d *Database) AddMember(ctx context.Context, roomID, userID uuid.UUID) error {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrRoomNotFound
		}
		return err
	}

	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	return d.db.WithContext(ctx).Model(&room).Association("Members").Append(&user)
}

// UpsertFile файл заменяется целиком по первичному ключу,
// пофайловый last-write-wins без слияния полей.
func (d *Database) UpsertFile(ctx context.Context, roomID uuid.UUID, file *models.FileContent) error {
	file.RoomID = roomID
	return d.db.WithContext(ctx).Save(file).Error
}

func (d *Database) AppendMessage(ctx context.Context, roomID uuid.UUID, msg *models.ChatMessage) error {
	msg.RoomID = roomID
	return d.db.WithContext(ctx).Create(msg).Error
}

func (d *Database) RoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Joins("JOIN room_members rm ON rm.room_id = rooms.id").
		Where("rm.user_id = ?", userID).
		Preload("Members").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// GetRoomMessages сообщения комнаты с пагинацией, старые первыми
func (d *Database) GetRoomMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeID *uuid.UUID) ([]models.ChatMessage, error) {
	query := d.db.WithContext(ctx).Where("room_id = ?", roomID)

	if beforeID != nil {
		var before models.ChatMessage
		if err := d.db.WithContext(ctx).First(&before, "id = ?", beforeID).Error; err == nil {
			query = query.Where("created_at < ?", before.CreatedAt)
		}
	}

	var messages []models.ChatMessage
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
