package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/studdy-space/internal/models"
	"github.com/thereayou/studdy-space/internal/storage"
)

// fakeStore хранилище в памяти для тестов ядра
type fakeStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*models.Room
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: make(map[uuid.UUID]*models.Room)}
}

func (f *fakeStore) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rooms {
		if r.Code == code {
			out := *r
			return &out, nil
		}
	}
	return nil, storage.ErrRoomNotFound
}

func (f *fakeStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, storage.ErrRoomNotFound
	}
	out := *r
	out.Members = append([]models.User(nil), r.Members...)
	out.Files = append([]models.FileContent(nil), r.Files...)
	out.Messages = append([]models.ChatMessage(nil), r.Messages...)
	return &out, nil
}

func (f *fakeStore) Create(ctx context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *room
	f.rooms[room.ID] = &out
	return nil
}

func (f *fakeStore) Replace(ctx context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; !ok {
		return storage.ErrRoomNotFound
	}
	out := *room
	f.rooms[room.ID] = &out
	return nil
}

func (f *fakeStore) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return storage.ErrRoomNotFound
	}
	r.Name = name
	return nil
}

func (f *fakeStore) AddMember(ctx context.Context, roomID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return storage.ErrRoomNotFound
	}
	if !r.HasMember(userID) {
		r.Members = append(r.Members, models.User{ID: userID})
	}
	return nil
}

func (f *fakeStore) UpsertFile(ctx context.Context, roomID uuid.UUID, file *models.FileContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return storage.ErrRoomNotFound
	}
	for i := range r.Files {
		if r.Files[i].ID == file.ID {
			r.Files[i] = *file
			return nil
		}
	}
	r.Files = append(r.Files, *file)
	return nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, roomID uuid.UUID, msg *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return storage.ErrRoomNotFound
	}
	r.Messages = append(r.Messages, *msg)
	return nil
}

func (f *fakeStore) RoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Room
	for _, r := range f.rooms {
		if r.HasMember(userID) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func newTestRoom(owner uuid.UUID) *models.Room {
	return &models.Room{
		ID:        uuid.New(),
		Code:      "AB12CD",
		Name:      "Physics",
		OwnerID:   owner,
		CreatedAt: time.Now().UTC(),
		Members:   []models.User{{ID: owner}},
	}
}

func loadedStore(t *testing.T) (*Store, *fakeStore, *models.Room) {
	t.Helper()
	owner := uuid.New()
	repo := newFakeStore()
	room := newTestRoom(owner)
	require.NoError(t, repo.Create(context.Background(), room))

	store := NewStore(repo)
	_, err := store.Load(context.Background(), room.ID)
	require.NoError(t, err)
	return store, repo, room
}

func TestLoadNotFound(t *testing.T) {
	store := NewStore(newFakeStore())
	_, err := store.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrRoomNotFound)
}

func TestUpsertFileLastWriteWins(t *testing.T) {
	store, repo, room := loadedStore(t)
	ctx := context.Background()

	fileID := uuid.New()
	draft := &models.FileContent{ID: fileID, Name: "notes.txt", Type: "text/plain", Content: "draft"}
	final := &models.FileContent{ID: fileID, Name: "notes.txt", Type: "text/plain", Content: "final"}

	require.NoError(t, store.UpsertFile(ctx, draft))
	require.NoError(t, store.UpsertFile(ctx, final))

	got := store.Room()
	require.Len(t, got.Files, 1, "same file id must keep a single entry")
	assert.Equal(t, "final", got.Files[0].Content)

	// Зеркало в хранилище обновлено до возврата
	persisted, err := repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, persisted.Files, 1)
	assert.Equal(t, "final", persisted.Files[0].Content)
}

// Известное ограничение: при конкурентных правках одного файла побеждает
// последняя примененная, без сравнения временных меток. Правка с более
// старым содержимым, примененная позже, затирает более новую.
func TestUpsertFileStaleOverwrite(t *testing.T) {
	store, _, _ := loadedStore(t)
	ctx := context.Background()

	fileID := uuid.New()
	newer := &models.FileContent{ID: fileID, Content: "newer", LastModified: time.Now()}
	older := &models.FileContent{ID: fileID, Content: "older", LastModified: time.Now().Add(-time.Hour)}

	require.NoError(t, store.UpsertFile(ctx, newer))
	require.NoError(t, store.UpsertFile(ctx, older))

	got := store.Room()
	require.Len(t, got.Files, 1)
	assert.Equal(t, "older", got.Files[0].Content)
}

// Аргументы мутаций — полезная нагрузка события шины, которое после
// публикации одновременно читают редьюсеры всех подписчиков и hub.
// Store обязан работать на копии и не трогать сам аргумент.
func TestUpsertFileDoesNotMutateArgument(t *testing.T) {
	store, _, room := loadedStore(t)

	file := &models.FileContent{ID: uuid.New(), Content: "shared"}
	require.NoError(t, store.UpsertFile(context.Background(), file))

	assert.Equal(t, uuid.Nil, file.RoomID, "event payload must stay untouched")
	got := store.Room()
	require.Len(t, got.Files, 1)
	assert.Equal(t, room.ID, got.Files[0].RoomID)
}

func TestAppendMessageDoesNotMutateArgument(t *testing.T) {
	store, _, room := loadedStore(t)

	msg := &models.ChatMessage{ID: uuid.New(), Text: "shared"}
	require.NoError(t, store.AppendMessage(context.Background(), msg))

	assert.Equal(t, uuid.Nil, msg.RoomID, "event payload must stay untouched")
	got := store.Room()
	require.Len(t, got.Messages, 1)
	assert.Equal(t, room.ID, got.Messages[0].RoomID)
}

// Несколько сессий одной комнаты применяют одно и то же событие
// одновременно. Гонок на общей полезной нагрузке быть не должно.
func TestConcurrentApplySharedPayload(t *testing.T) {
	owner := uuid.New()
	repo := newFakeStore()
	room := newTestRoom(owner)
	require.NoError(t, repo.Create(context.Background(), room))

	stores := make([]*Store, 4)
	for i := range stores {
		stores[i] = NewStore(repo)
		_, err := stores[i].Load(context.Background(), room.ID)
		require.NoError(t, err)
	}

	file := &models.FileContent{ID: uuid.New(), Content: "board"}
	msg := &models.ChatMessage{ID: uuid.New(), Text: "hello"}

	var wg sync.WaitGroup
	for _, s := range stores {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			assert.NoError(t, s.UpsertFile(context.Background(), file))
			assert.NoError(t, s.AppendMessage(context.Background(), msg))
		}(s)
	}
	wg.Wait()

	for _, s := range stores {
		got := s.Room()
		require.Len(t, got.Files, 1)
		assert.Len(t, got.Messages, 1)
	}
}

func TestReplaceOverwritesWholeRoom(t *testing.T) {
	store, repo, room := loadedStore(t)
	ctx := context.Background()

	edited := store.Room()
	edited.Name = "Chemistry"
	edited.Files = []models.FileContent{{ID: uuid.New(), RoomID: room.ID, Name: "lab.txt", Content: "notes"}}
	edited.Messages = []models.ChatMessage{{ID: uuid.New(), RoomID: room.ID, Text: "restored"}}
	edited.Members = append(edited.Members, models.User{ID: uuid.New()})

	require.NoError(t, store.Replace(ctx, edited))

	got := store.Room()
	assert.Equal(t, "Chemistry", got.Name)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "lab.txt", got.Files[0].Name)
	assert.Len(t, got.Members, 2)

	persisted, err := repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", persisted.Name)
	require.Len(t, persisted.Messages, 1)
	assert.Equal(t, "restored", persisted.Messages[0].Text)
}

func TestAppendMessagePreservesOrder(t *testing.T) {
	store, _, _ := loadedStore(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		msg := &models.ChatMessage{ID: uuid.New(), Text: text}
		require.NoError(t, store.AppendMessage(ctx, msg))
	}

	got := store.Room()
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "first", got.Messages[0].Text)
	assert.Equal(t, "second", got.Messages[1].Text)
	assert.Equal(t, "third", got.Messages[2].Text)
}

func TestAppendMessageDeduplicatesByID(t *testing.T) {
	store, repo, room := loadedStore(t)
	ctx := context.Background()

	msg := &models.ChatMessage{ID: uuid.New(), Text: "hello"}
	require.NoError(t, store.AppendMessage(ctx, msg))
	require.NoError(t, store.AppendMessage(ctx, msg))

	assert.Len(t, store.Room().Messages, 1)

	persisted, err := repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, persisted.Messages, 1)
}

func TestAddMemberIdempotent(t *testing.T) {
	store, _, _ := loadedStore(t)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, store.AddMember(ctx, userID))
	sizeAfterFirst := len(store.Room().Members)

	require.NoError(t, store.AddMember(ctx, userID))
	assert.Equal(t, sizeAfterFirst, len(store.Room().Members))
}

func TestOwnerAlwaysMember(t *testing.T) {
	store, _, room := loadedStore(t)

	got := store.Room()
	assert.True(t, got.HasMember(room.OwnerID))
}
