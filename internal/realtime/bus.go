package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler вызывается по одному разу на каждое опубликованное событие.
type Handler func(Event)

// Bus широковещательная шина изменений. Publish не ждет подтверждений и
// не гарантирует доставку; подписчик получает события в порядке
// публикации каждого издателя, между издателями порядок не определен.
// Шина не разделена по комнатам — подписчики фильтруют по RoomID сами.
// Издатель получает и собственные события, если сам подписан.
type Bus interface {
	Publish(event Event)
	Subscribe(handler Handler) (unsubscribe func())
}

// LocalBus внутрипроцессная шина: каждому подписчику свой буферизованный
// канал и горутина-доставщик, как в канале Send клиента хаба.
type LocalBus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan Event
	closed  bool
	bufSize int
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		subs:    make(map[int]chan Event),
		bufSize: 64,
	}
}

func (b *LocalBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Подписчик не успевает — событие для него теряется,
			// доставка не гарантируется по контракту.
			logrus.WithFields(logrus.Fields{
				"component":  "localbus",
				"subscriber": id,
			}).Warn("subscriber queue full, event dropped")
		}
	}
}

func (b *LocalBus) Subscribe(handler Handler) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufSize)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		for event := range ch {
			handler(event)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Close закрывает шину, дальнейшие публикации игнорируются.
func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
