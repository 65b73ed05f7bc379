package stream

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamClient records registry commands and tracks which keys
// exist, so SetNX behaves like Redis.
type fakeStreamClient struct {
	keys    map[string]bool
	expired []string
	deleted []string
}

func newFakeStreamClient() *fakeStreamClient {
	return &fakeStreamClient{keys: make(map[string]bool)}
}

func (f *fakeStreamClient) XAdd(context.Context, *redis.XAddArgs) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeStreamClient) XRead(context.Context, *redis.XReadArgs) *redis.XStreamSliceCmd {
	return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
}

func (f *fakeStreamClient) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	created := !f.keys[key]
	f.keys[key] = true
	return redis.NewBoolResult(created, nil)
}

func (f *fakeStreamClient) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	f.expired = append(f.expired, key)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStreamClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.keys, key)
		f.deleted = append(f.deleted, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestConsumerRegistrationLifecycle(t *testing.T) {
	client := newFakeStreamClient()
	bus := NewBus(client, "letters", 4, 1000, "stream:consumers:", time.Minute)
	ctx := context.Background()

	// First registration claims the slot.
	created, err := bus.RegisterConsumer(ctx, "word-resolver")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, client.keys["stream:consumers:word-resolver"])

	// A second registration reuses it and refreshes the TTL.
	created, err = bus.RegisterConsumer(ctx, "word-resolver")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"stream:consumers:word-resolver"}, client.expired)

	// Deregistration releases the slot so the name can be claimed anew.
	require.NoError(t, bus.DeregisterConsumer(ctx, "word-resolver"))
	assert.Equal(t, []string{"stream:consumers:word-resolver"}, client.deleted)

	created, err = bus.RegisterConsumer(ctx, "word-resolver")
	require.NoError(t, err)
	assert.True(t, created)
}
