package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamClient is the slice of go-redis the bus uses.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Bus is a partitioned stream over Redis Streams. Shard s of stream
// "name" lives at key "stream:<name>:<s>".
type Bus struct {
	client         StreamClient
	name           string
	shards         int
	maxLen         int64
	registryPrefix string
	registryTTL    time.Duration
}

func NewBus(client StreamClient, name string, shards int, maxLen int64, registryPrefix string, registryTTL time.Duration) *Bus {
	return &Bus{
		client:         client,
		name:           name,
		shards:         shards,
		maxLen:         maxLen,
		registryPrefix: registryPrefix,
		registryTTL:    registryTTL,
	}
}

func (b *Bus) shardKey(shard int) string {
	return fmt.Sprintf("stream:%s:%d", b.name, shard)
}

func (b *Bus) Shards() int { return b.shards }

// Publish appends a record to the shard its key hashes to. The stream
// is capped approximately at maxLen so unconsumed history cannot grow
// without bound.
func (b *Bus) Publish(ctx context.Context, key string, data []byte) error {
	shard := ShardFor(key, b.shards)
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.shardKey(shard),
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{"key": key, "data": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.shardKey(shard), err)
	}
	return nil
}

// Read implements Source. afterID is exclusive; LatestID waits for new
// records only.
func (b *Bus) Read(ctx context.Context, shard int, afterID string, block time.Duration) ([]Record, error) {
	res, err := b.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{b.shardKey(shard), afterID},
		Count:   100,
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read shard %d: %w", shard, err)
	}

	var out []Record
	for _, s := range res {
		for _, m := range s.Messages {
			rec := Record{ID: m.ID}
			if k, ok := m.Values["key"].(string); ok {
				rec.Key = k
			}
			if d, ok := m.Values["data"].(string); ok {
				rec.Data = []byte(d)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// RegisterConsumer claims a named consumer slot. Returns true when the
// name was newly registered, false when an existing registration was
// reused (the TTL is refreshed either way).
func (b *Bus) RegisterConsumer(ctx context.Context, name string) (bool, error) {
	key := b.registryPrefix + name
	created, err := b.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), b.registryTTL).Result()
	if err != nil {
		return false, fmt.Errorf("register consumer %s: %w", name, err)
	}
	if !created {
		if err := b.client.Expire(ctx, key, b.registryTTL).Err(); err != nil {
			return false, fmt.Errorf("refresh consumer %s: %w", name, err)
		}
	}
	return created, nil
}

// DeregisterConsumer releases a consumer slot.
func (b *Bus) DeregisterConsumer(ctx context.Context, name string) error {
	if err := b.client.Del(ctx, b.registryPrefix+name).Err(); err != nil {
		return fmt.Errorf("deregister consumer %s: %w", name, err)
	}
	return nil
}
