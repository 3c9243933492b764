package calendar

import (
	"context"
	"encoding/json"
	"fmt"

	"slotwise/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// InvalidationBus carries provider push notifications to every cache replica.
type InvalidationBus interface {
	Publish(ctx context.Context, ev models.InvalidationEvent) error
}

// LocalBus applies events directly to the cache of this process.
type LocalBus struct {
	cache *BusyCache
}

func NewLocalBus(cache *BusyCache) *LocalBus {
	return &LocalBus{cache: cache}
}

func (b *LocalBus) Publish(_ context.Context, ev models.InvalidationEvent) error {
	b.cache.Apply(ev)
	return nil
}

// RedisBus fans events out over Redis pub/sub so every instance invalidates
// its own cache.
type RedisBus struct {
	client  *redis.Client
	channel string
	cache   *BusyCache
	logger  *zap.Logger
}

func NewRedisBus(client *redis.Client, channel string, cache *BusyCache, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, channel: channel, cache: cache, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, ev models.InvalidationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal invalidation event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		// the local replica must not keep stale data because Redis is down
		b.cache.Apply(ev)
		return fmt.Errorf("publish invalidation event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and applies events until ctx is done.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("listening for calendar invalidations", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.InvalidationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed invalidation event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			b.cache.Apply(ev)
		}
	}
}
