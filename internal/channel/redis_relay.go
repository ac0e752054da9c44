package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const relayPattern = "room:*:events"

func relayChannel(roomID string) string {
	return fmt.Sprintf("room:%s:events", roomID)
}

// RedisRelay fans events out across instances with Redis pub/sub
type RedisRelay struct {
	client *redis.Client
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{client: client, done: make(chan struct{})}
}

func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, relayChannel(ev.RoomID), data).Err()
}

// Subscribe waits for the PSUBSCRIBE confirmation, then delivers on a background goroutine
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(Event)) error {
	pubsub := r.client.PSubscribe(ctx, relayPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", relayPattern, err)
	}
	r.pubsub = pubsub

	go func() {
		defer close(r.done)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed relay event")
				continue
			}
			deliver(ev)
		}
	}()

	log.Info().Str("pattern", relayPattern).Msg("relay subscribed")
	return nil
}

// Close stops the receive loop
func (r *RedisRelay) Close() error {
	var err error
	r.once.Do(func() {
		if r.pubsub == nil {
			close(r.done)
			return
		}
		err = r.pubsub.Close()
		<-r.done
	})
	return err
}
