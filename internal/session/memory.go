package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used in tests and local runs
// without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]Observation
	buffers map[string]*WordBuffer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string][]Observation),
		buffers: make(map[string]*WordBuffer),
	}
}

func (s *MemoryStore) AppendObservation(_ context.Context, sessionID string, obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[sessionID] = append(s.windows[sessionID], obs)
	return nil
}

func (s *MemoryStore) PruneWindow(_ context.Context, sessionID string, cutoffMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.windows[sessionID]
	i := 0
	for i < len(w) && w[i].TimestampMS < cutoffMS {
		i++
	}
	s.windows[sessionID] = w[i:]
	return nil
}

func (s *MemoryStore) Window(_ context.Context, sessionID string) ([]Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.windows[sessionID]
	out := make([]Observation, len(w))
	copy(out, w)
	return out, nil
}

func (s *MemoryStore) Buffer(_ context.Context, sessionID string) (*WordBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.buffers[sessionID]; ok {
		cp := *buf
		cp.Letters = append([]string(nil), buf.Letters...)
		return &cp, nil
	}
	return &WordBuffer{}, nil
}

func (s *MemoryStore) SaveBuffer(_ context.Context, sessionID string, buf *WordBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *buf
	cp.Letters = append([]string(nil), buf.Letters...)
	s.buffers[sessionID] = &cp
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, sessionID)
	delete(s.buffers, sessionID)
	return nil
}

func (s *MemoryStore) BufferedSessions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.buffers))
	for id := range s.buffers {
		out = append(out, id)
	}
	return out, nil
}
