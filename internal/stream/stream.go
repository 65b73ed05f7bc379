// Package stream provides the partitioned event bus the pipeline runs
// on. A logical stream is split into shards; records with the same key
// always land on the same shard, which preserves per-session ordering
// end to end. Consumers hold time-bounded subscriptions per shard and
// resume from an explicit continuation after expiry or failure, giving
// at-least-once delivery.
package stream

import (
	"context"
	"hash/fnv"
	"time"
)

// Record is one entry on a shard.
type Record struct {
	// ID is the shard-local entry id, usable as a continuation.
	ID string
	// Key is the partition key the record was published with.
	Key string
	// Data is the opaque payload.
	Data []byte
}

// Handler consumes records in shard order. A returned error is logged
// and the consumer moves on; redelivery only happens across
// subscription restarts.
type Handler func(ctx context.Context, rec Record) error

// Source reads shard contents. Read returns records strictly after
// afterID (LatestID for new records only), blocking up to block when
// the shard is empty. An empty result with nil error is a heartbeat.
type Source interface {
	Shards() int
	Read(ctx context.Context, shard int, afterID string, block time.Duration) ([]Record, error)
}

// LatestID subscribes at the tip of a shard.
const LatestID = "$"

// ShardFor maps a partition key onto one of n shards (FNV-1a).
func ShardFor(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
