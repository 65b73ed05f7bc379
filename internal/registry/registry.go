// Package registry tracks live websocket connections and the session
// each one owns, so the outbound path can find the socket for a
// session. Rows carry a 24h TTL; a connection that outlives it
// re-registers on its next frame.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connPrefix = "conn:"
	sessPrefix = "sess:"

	// PendingSession marks a connection that has not sent landmarks
	// yet.
	PendingSession = "pending"

	DefaultTTL = 24 * time.Hour
)

var ErrNotFound = errors.New("registry: not found")

// Connection is the stored row for one websocket connection.
type Connection struct {
	SessionID    string `json:"session_id"`
	ConnectedAt  string `json:"connected_at"`
	LastActivity string `json:"last_activity"`
}

// Store is the registry contract.
type Store interface {
	// Register creates a pending row for a new connection.
	Register(ctx context.Context, connectionID string) error
	// Touch binds a connection to a session and refreshes its
	// activity timestamp and the session reverse index.
	Touch(ctx context.Context, connectionID, sessionID string) error
	// Lookup returns the connection currently serving a session.
	Lookup(ctx context.Context, sessionID string) (string, error)
	// Remove deletes a connection row (the reverse index expires on
	// its own).
	Remove(ctx context.Context, connectionID string) error
}

// RedisClient is the slice of go-redis the registry needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore implements Store on Redis.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Register(ctx context.Context, connectionID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	row := Connection{SessionID: PendingSession, ConnectedAt: now, LastActivity: now}
	return s.writeConn(ctx, connectionID, row)
}

func (s *RedisStore) Touch(ctx context.Context, connectionID, sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	row := Connection{SessionID: sessionID, ConnectedAt: now, LastActivity: now}

	// Preserve the original connect time when the row still exists.
	if data, err := s.client.Get(ctx, connPrefix+connectionID).Result(); err == nil {
		var existing Connection
		if json.Unmarshal([]byte(data), &existing) == nil && existing.ConnectedAt != "" {
			row.ConnectedAt = existing.ConnectedAt
		}
	}

	if err := s.writeConn(ctx, connectionID, row); err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessPrefix+sessionID, connectionID, s.ttl).Err(); err != nil {
		return fmt.Errorf("write session index: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (string, error) {
	connectionID, err := s.client.Get(ctx, sessPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup session %s: %w", sessionID, err)
	}
	return connectionID, nil
}

func (s *RedisStore) Remove(ctx context.Context, connectionID string) error {
	if err := s.client.Del(ctx, connPrefix+connectionID).Err(); err != nil {
		return fmt.Errorf("remove connection %s: %w", connectionID, err)
	}
	return nil
}

func (s *RedisStore) writeConn(ctx context.Context, connectionID string, row Connection) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal connection row: %w", err)
	}
	if err := s.client.Set(ctx, connPrefix+connectionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write connection row: %w", err)
	}
	return nil
}
