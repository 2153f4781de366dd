package state

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/thereayou/studdy-space/internal/realtime"
	"github.com/thereayou/studdy-space/internal/storage"
)

// Session открытая комната: ее состояние и редьюсер, подписанный на шину.
type Session struct {
	Store   *Store
	Reducer *Reducer

	detach func()
	refs   int
}

// Manager держит по сессии на каждую открытую комнату. Первый Open
// материализует комнату из хранилища и подписывает редьюсер на шину,
// последний Release отписывает.
type Manager struct {
	repo storage.RoomStore
	bus  realtime.Bus

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(repo storage.RoomStore, bus realtime.Bus) *Manager {
	return &Manager{
		repo:     repo,
		bus:      bus,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (m *Manager) Open(ctx context.Context, roomID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[roomID]; ok {
		sess.refs++
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	// Загрузка вне блокировки: обращение к хранилищу может быть долгим
	store := NewStore(m.repo)
	if _, err := store.Load(ctx, roomID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[roomID]; ok {
		sess.refs++
		return sess, nil
	}

	reducer := NewReducer(store)
	sess := &Session{
		Store:   store,
		Reducer: reducer,
		detach:  reducer.Attach(m.bus),
		refs:    1,
	}
	m.sessions[roomID] = sess
	return sess, nil
}

// Get возвращает открытую сессию без изменения счетчика ссылок.
func (m *Manager) Get(roomID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[roomID]
	return sess, ok
}

func (m *Manager) Release(roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[roomID]
	if !ok {
		return
	}
	sess.refs--
	if sess.refs <= 0 {
		sess.detach()
		delete(m.sessions, roomID)
	}
}
