package state

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thereayou/studdy-space/internal/realtime"
)

// CanvasListener получает снимок доски (data URL) для перерисовки.
type CanvasListener func(dataURL string)

// Reducer единственная точка, через которую событие шины становится
// мутацией состояния комнаты. Локальные и удаленные события проходят
// один и тот же путь, поэтому применение идемпотентно к самодоставке:
// замена файла идемпотентна сама по себе, сообщения отсекаются по id,
// добавление участника — объединение множеств.
type Reducer struct {
	store *Store
	log   *logrus.Entry

	mu       sync.RWMutex
	nextID   int
	canvases map[uuid.UUID]map[int]CanvasListener
}

func NewReducer(store *Store) *Reducer {
	return &Reducer{
		store:    store,
		log:      logrus.WithField("component", "reducer"),
		canvases: make(map[uuid.UUID]map[int]CanvasListener),
	}
}

// Attach подписывает редьюсер на шину, возвращает отписку.
func (r *Reducer) Attach(bus realtime.Bus) func() {
	return bus.Subscribe(func(event realtime.Event) {
		r.Apply(context.Background(), event)
	})
}

// Apply применяет входящее событие. События чужих комнат и неизвестные
// виды отбрасываются молча, событие не валидируется сверх этого.
func (r *Reducer) Apply(ctx context.Context, event realtime.Event) {
	if event.RoomID != r.store.RoomID() {
		return
	}

	switch event.Type {
	case realtime.EventFileUpdate:
		if event.File == nil {
			return
		}
		if err := r.store.UpsertFile(ctx, event.File); err != nil {
			r.log.WithError(err).Error("failed to apply file update")
		}

	case realtime.EventMessageSent:
		if event.Message == nil {
			return
		}
		if err := r.store.AppendMessage(ctx, event.Message); err != nil {
			r.log.WithError(err).Error("failed to apply message")
		}

	case realtime.EventMemberJoined:
		if event.UserID == uuid.Nil {
			return
		}
		if err := r.store.AddMember(ctx, event.UserID); err != nil {
			r.log.WithError(err).Error("failed to apply member join")
		}

	case realtime.EventDrawingSync:
		// Снимок доски только регидрирует холсты подписчиков.
		// Содержимое файла персистится отдельным FILE_UPDATE при
		// явном сохранении.
		r.notifyCanvas(event.FileID, event.DataURL)

	default:
		r.log.WithField("type", event.Type).Debug("dropping unknown event")
	}
}

// OnDrawing регистрирует слушателя снимков доски для файла.
func (r *Reducer) OnDrawing(fileID uuid.UUID, fn CanvasListener) func() {
	r.mu.Lock()
	if r.canvases[fileID] == nil {
		r.canvases[fileID] = make(map[int]CanvasListener)
	}
	id := r.nextID
	r.nextID++
	r.canvases[fileID][id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if listeners, ok := r.canvases[fileID]; ok {
			delete(listeners, id)
			if len(listeners) == 0 {
				delete(r.canvases, fileID)
			}
		}
	}
}

func (r *Reducer) notifyCanvas(fileID uuid.UUID, dataURL string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, fn := range r.canvases[fileID] {
		fn(dataURL)
	}
}
