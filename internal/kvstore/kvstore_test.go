package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, "")
}

func physicsRoom(owner uuid.UUID) *models.Room {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &models.Room{
		ID:        uuid.New(),
		Code:      "X7K2PQ",
		Name:      "Physics",
		OwnerID:   owner,
		CreatedAt: created,
		Members:   []models.User{{ID: owner}},
	}
}

func TestRoomRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner := uuid.New()
	room := physicsRoom(owner)
	room.Files = []models.FileContent{{
		ID:           uuid.New(),
		RoomID:       room.ID,
		Name:         "lecture.md",
		Type:         "text/markdown",
		Content:      "# Mechanics",
		LastModified: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		AuthorID:     owner,
	}}
	room.Messages = []models.ChatMessage{{
		ID:         uuid.New(),
		RoomID:     room.ID,
		SenderID:   owner,
		SenderName: "alice",
		Text:       "welcome",
		CreatedAt:  time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC),
	}}

	require.NoError(t, store.Create(ctx, room))

	got, err := store.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room, got, "room must survive serialization field-for-field")
}

func TestFindByCodeCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	room := physicsRoom(uuid.New())
	room.Code = "AB12CD"
	require.NoError(t, store.Create(ctx, room))

	got, err := store.FindByCode(ctx, "ab12cd")
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
}

func TestFindByCodeNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByCode(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, storage.ErrRoomNotFound)
}

func TestFindByIDNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrRoomNotFound)
}

// Клиент A создает комнату, клиент B вступает по коду в нижнем
// регистре, повторное вступление не добавляет дубликата
func TestJoinByCodeScenario(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	clientA := uuid.New()
	clientB := uuid.New()

	room := physicsRoom(clientA)
	require.NoError(t, store.Create(ctx, room))

	found, err := store.FindByCode(ctx, "x7k2pq")
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)

	require.NoError(t, store.AddMember(ctx, found.ID, clientB))
	require.NoError(t, store.AddMember(ctx, found.ID, clientB))

	got, err := store.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
	assert.True(t, got.HasMember(clientA))
	assert.True(t, got.HasMember(clientB))
}

func TestReplaceOverwritesStoredRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner := uuid.New()
	room := physicsRoom(owner)
	require.NoError(t, store.Create(ctx, room))
	require.NoError(t, store.AppendMessage(ctx, room.ID, &models.ChatMessage{ID: uuid.New(), Text: "old"}))

	edited := *room
	edited.Name = "Chemistry"
	edited.Members = []models.User{{ID: owner}, {ID: uuid.New()}}
	edited.Files = []models.FileContent{{ID: uuid.New(), RoomID: room.ID, Name: "lab.txt", Content: "notes"}}
	edited.Messages = nil

	require.NoError(t, store.Replace(ctx, &edited))

	got, err := store.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", got.Name)
	assert.Len(t, got.Members, 2)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "lab.txt", got.Files[0].Name)
	assert.Empty(t, got.Messages, "replace is wholesale, dropped entries do not survive")
}

func TestReplaceUnknownRoom(t *testing.T) {
	store := newTestStore(t)

	err := store.Replace(context.Background(), physicsRoom(uuid.New()))
	assert.ErrorIs(t, err, storage.ErrRoomNotFound)
}

func TestUpsertFileReplacesById(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	room := physicsRoom(uuid.New())
	require.NoError(t, store.Create(ctx, room))

	fileID := uuid.New()
	require.NoError(t, store.UpsertFile(ctx, room.ID, &models.FileContent{ID: fileID, Content: "draft"}))
	require.NoError(t, store.UpsertFile(ctx, room.ID, &models.FileContent{ID: fileID, Content: "final"}))
	require.NoError(t, store.UpsertFile(ctx, room.ID, &models.FileContent{ID: uuid.New(), Content: "other"}))

	got, err := store.FindByID(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "final", got.Files[0].Content)
}

func TestAppendMessageAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	room := physicsRoom(uuid.New())
	require.NoError(t, store.Create(ctx, room))

	ids := make([]uuid.UUID, 0, 5)
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		msg := &models.ChatMessage{ID: uuid.New(), Text: text}
		require.NoError(t, store.AppendMessage(ctx, room.ID, msg))
		ids = append(ids, msg.ID)
	}

	got, err := store.FindByID(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 5)
	assert.Equal(t, "one", got.Messages[0].Text)
	assert.Equal(t, "five", got.Messages[4].Text)

	// Последние два до "five"
	history, err := store.GetRoomMessages(ctx, room.ID, 2, &ids[4])
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "three", history[0].Text)
	assert.Equal(t, "four", history[1].Text)
}

func TestMutateUnknownRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.AppendMessage(ctx, uuid.New(), &models.ChatMessage{ID: uuid.New(), Text: "hi"})
	assert.ErrorIs(t, err, storage.ErrRoomNotFound)
}
