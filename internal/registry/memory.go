package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu       sync.Mutex
	conns    map[string]Connection
	sessions map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conns:    make(map[string]Connection),
		sessions: make(map[string]string),
	}
}

func (s *MemoryStore) Register(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	s.conns[connectionID] = Connection{SessionID: PendingSession, ConnectedAt: now, LastActivity: now}
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, connectionID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	row, ok := s.conns[connectionID]
	if !ok {
		row = Connection{ConnectedAt: now}
	}
	row.SessionID = sessionID
	row.LastActivity = now
	s.conns[connectionID] = row
	s.sessions[sessionID] = connectionID
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	connectionID, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	return connectionID, nil
}

func (s *MemoryStore) Remove(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, connectionID)
	return nil
}
