// Package session persists per-session recognition state: the sliding
// observation window and the in-progress word buffer. Keys live in
// Redis with a TTL so abandoned sessions evaporate on their own.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	windowKeyPrefix = "window:"
	bufferKeyPrefix = "word:"
)

var ErrStoreUnavailable = errors.New("session store unavailable")

// Observation is one classifier prediction inside the voting window.
type Observation struct {
	Char        string  `json:"char"`
	Confidence  float64 `json:"confidence"`
	TimestampMS int64   `json:"ts"`
}

// WordBuffer accumulates committed letters until a pause finalizes the
// word. LastCommitMS drives the pause detector.
type WordBuffer struct {
	Letters      []string `json:"letters"`
	LastCommitMS int64    `json:"last_commit_ts"`
	StartedMS    int64    `json:"started_at"`
}

// Word joins the buffered letters into the raw fingerspelled string.
func (b *WordBuffer) Word() string {
	return strings.Join(b.Letters, "")
}

// Store is the session-state contract the commit engine runs against.
type Store interface {
	// AppendObservation pushes an observation onto the session's
	// window and refreshes the window TTL.
	AppendObservation(ctx context.Context, sessionID string, obs Observation) error
	// PruneWindow drops observations older than cutoffMS from the
	// head of the window.
	PruneWindow(ctx context.Context, sessionID string, cutoffMS int64) error
	// Window returns the session's observations, oldest first.
	Window(ctx context.Context, sessionID string) ([]Observation, error)
	// Buffer returns the session's word buffer, or an empty buffer
	// when none exists yet.
	Buffer(ctx context.Context, sessionID string) (*WordBuffer, error)
	// SaveBuffer writes the word buffer with a fresh TTL.
	SaveBuffer(ctx context.Context, sessionID string, buf *WordBuffer) error
	// Clear removes the session's window and buffer.
	Clear(ctx context.Context, sessionID string) error
	// BufferedSessions lists session ids that currently have a word
	// buffer. Used by the pause sweep.
	BufferedSessions(ctx context.Context) ([]string, error)
}

// RedisClient is the narrow slice of go-redis this package needs,
// which keeps the store testable without a live server.
type RedisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// RedisStore implements Store on Redis.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
	logger *log.Logger
}

func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[SESSION] ", log.LstdFlags),
	}
}

func (s *RedisStore) AppendObservation(ctx context.Context, sessionID string, obs Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	key := windowKeyPrefix + sessionID
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push observation: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.Printf("⚠️ expire %s: %v", key, err)
	}
	return nil
}

func (s *RedisStore) PruneWindow(ctx context.Context, sessionID string, cutoffMS int64) error {
	key := windowKeyPrefix + sessionID
	for {
		head, err := s.client.LRange(ctx, key, 0, 0).Result()
		if err != nil {
			return fmt.Errorf("read window head: %w", err)
		}
		if len(head) == 0 {
			return nil
		}
		var obs Observation
		if err := json.Unmarshal([]byte(head[0]), &obs); err != nil {
			// Corrupt entry: pop it rather than wedge the window.
			s.logger.Printf("⚠️ dropping corrupt window entry for %s: %v", sessionID, err)
		} else if obs.TimestampMS >= cutoffMS {
			return nil
		}
		if err := s.client.LPop(ctx, key).Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("pop stale observation: %w", err)
		}
	}
}

func (s *RedisStore) Window(ctx context.Context, sessionID string) ([]Observation, error) {
	entries, err := s.client.LRange(ctx, windowKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read window: %w", err)
	}
	out := make([]Observation, 0, len(entries))
	for _, e := range entries {
		var obs Observation
		if err := json.Unmarshal([]byte(e), &obs); err != nil {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

func (s *RedisStore) Buffer(ctx context.Context, sessionID string) (*WordBuffer, error) {
	data, err := s.client.Get(ctx, bufferKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &WordBuffer{}, nil
		}
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	var buf WordBuffer
	if err := json.Unmarshal([]byte(data), &buf); err != nil {
		return nil, fmt.Errorf("decode buffer: %w", err)
	}
	return &buf, nil
}

func (s *RedisStore) SaveBuffer(ctx context.Context, sessionID string, buf *WordBuffer) error {
	data, err := json.Marshal(buf)
	if err != nil {
		return fmt.Errorf("marshal buffer: %w", err)
	}
	if err := s.client.Set(ctx, bufferKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, windowKeyPrefix+sessionID, bufferKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *RedisStore) BufferedSessions(ctx context.Context) ([]string, error) {
	var (
		sessions []string
		cursor   uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, bufferKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan buffers: %w", err)
		}
		for _, k := range keys {
			sessions = append(sessions, strings.TrimPrefix(k, bufferKeyPrefix))
		}
		cursor = next
		if cursor == 0 {
			return sessions, nil
		}
	}
}
