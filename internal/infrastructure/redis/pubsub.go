// Package redis implements the Pub/Sub Bus on top of go-redis,
// wrapping a Redis client the same way a cache-key helper would.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/baechuer/waitline/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Bus struct {
	Client *redis.Client
}

func New(addr, pass string, db int) *Bus {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Bus{Client: rdb}
}

var _ domain.PubSub = (*Bus)(nil)

func (b *Bus) Publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Client.Publish(ctx, channel, body).Err()
}

// Subscribe opens a dedicated subscriber connection, separate from the
// command client used for CacheGet/CacheSet — go-redis, like most pub/sub
// clients, forbids issuing regular commands on a connection that is
// subscribed.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) (domain.Subscription, error) {
	ps := b.Client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan domain.Message, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- domain.Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-done:
				return
			}
		}
	}()

	return &subscription{ps: ps, out: out, done: done}, nil
}

type subscription struct {
	ps   *redis.PubSub
	out  chan domain.Message
	done chan struct{}
}

func (s *subscription) Messages() <-chan domain.Message { return s.out }

func (s *subscription) Unsubscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return s.ps.Unsubscribe(ctx)
	}
	return s.ps.Unsubscribe(ctx, channels...)
}

// Close stops the forwarding goroutine (even mid-send against a full out
// channel) before closing the underlying subscription.
func (s *subscription) Close() error {
	close(s.done)
	return s.ps.Close()
}

func (b *Bus) CacheSet(ctx context.Context, key string, payload any, ttl time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Client.Set(ctx, key, body, ttl).Err()
}

func (b *Bus) CacheGet(ctx context.Context, key string, dest any) error {
	val, err := b.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(val, dest)
}
