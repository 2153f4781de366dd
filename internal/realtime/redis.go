package realtime

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const defaultChannel = "studdy:sync"

// RedisBus шина изменений поверх Redis pub/sub: один общий канал для
// всех комнат, конверты JSON. Несколько процессов сервера видят одни и
// те же события; публикующий процесс получает их и сам через свою
// подписку.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *LocalBus
	cancel  context.CancelFunc
	log     *logrus.Entry
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = defaultChannel
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		client:  client,
		channel: channel,
		local:   NewLocalBus(),
		cancel:  cancel,
		log:     logrus.WithField("component", "redisbus"),
	}

	go b.receive(ctx)

	return b
}

func (b *RedisBus) Publish(event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		b.log.WithError(err).Error("failed to encode event")
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, raw).Err(); err != nil {
		b.log.WithError(err).Error("failed to publish event")
	}
}

func (b *RedisBus) Subscribe(handler Handler) func() {
	return b.local.Subscribe(handler)
}

func (b *RedisBus) Close() {
	b.cancel()
	b.local.Close()
}

// receive читает канал pub/sub и раздает события локальным подписчикам.
func (b *RedisBus) receive(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				// Искаженный конверт отбрасывается, состояние не трогаем
				b.log.WithError(err).Warn("dropping malformed event")
				continue
			}
			b.local.Publish(event)
		}
	}
}
