package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/studdy-space/internal/models"
)

func collect(bus Bus) (*[]Event, *sync.Mutex, func()) {
	var mu sync.Mutex
	var events []Event
	unsubscribe := bus.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	return &events, &mu, unsubscribe
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLocalBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	first, firstMu, stop1 := collect(bus)
	second, secondMu, stop2 := collect(bus)
	defer stop1()
	defer stop2()

	roomID := uuid.New()
	bus.Publish(MemberJoined(roomID, uuid.New()))

	waitFor(t, func() bool {
		firstMu.Lock()
		defer firstMu.Unlock()
		secondMu.Lock()
		defer secondMu.Unlock()
		return len(*first) == 1 && len(*second) == 1
	})

	assert.Equal(t, roomID, (*first)[0].RoomID)
	assert.Equal(t, roomID, (*second)[0].RoomID)
}

// Издатель получает собственные события, самодоставка не подавляется
func TestLocalBusSelfDelivery(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	events, mu, stop := collect(bus)
	defer stop()

	msg := &models.ChatMessage{ID: uuid.New(), Text: "hello"}
	bus.Publish(MessageSent(uuid.New(), msg))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 1
	})

	require.NotNil(t, (*events)[0].Message)
	assert.Equal(t, msg.ID, (*events)[0].Message.ID)
}

func TestLocalBusPreservesPublishOrder(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	events, mu, stop := collect(bus)
	defer stop()

	roomID := uuid.New()
	fileID := uuid.New()
	const n = 20
	for i := 0; i < n; i++ {
		bus.Publish(DrawingSync(roomID, fileID, string(rune('a'+i))))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == n
	})

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		assert.Equal(t, string(rune('a'+i)), (*events)[i].DataURL)
	}
}

func TestLocalBusUnsubscribe(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	events, mu, stop := collect(bus)

	bus.Publish(MemberJoined(uuid.New(), uuid.New()))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 1
	})

	stop()
	bus.Publish(MemberJoined(uuid.New(), uuid.New()))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, *events, 1)
}

func TestLocalBusPublishAfterClose(t *testing.T) {
	bus := NewLocalBus()
	bus.Close()

	// Не должно паниковать
	bus.Publish(MemberJoined(uuid.New(), uuid.New()))
	stop := bus.Subscribe(func(Event) {})
	stop()
}
