// Package gateway is the client-facing edge of the pipeline: it
// accepts websocket connections, validates and enqueues landmark
// frames, and delivers resolved words back over the owning socket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/monitoring"
	"github.com/glossa/backend/internal/registry"
)

// Publisher is the landmarks-stream sink; satisfied by *stream.Bus.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte) error
}

type Server struct {
	router    *mux.Router
	registry  registry.Store
	publisher Publisher
	limiter   *frameLimiter

	mu      sync.RWMutex
	clients map[string]*client

	logger *log.Logger
}

func NewServer(reg registry.Store, pub Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		registry:  reg,
		publisher: pub,
		limiter:   newFrameLimiter(0),
		clients:   make(map[string]*client),
		logger:    log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags),
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/internal/push", s.handlePush).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", monitoring.Handler())
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "healthy",
		"connections": s.clientCount(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		server: s,
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}

	if err := s.registry.Register(r.Context(), c.id); err != nil {
		// A missing registry row only affects outbound delivery;
		// ingestion still works.
		s.logger.Printf("⚠️ register connection %s: %v", c.id, err)
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.logger.Printf("🔌 websocket connected: %s", c.id)
	go c.writePump()
	go c.readPump()
}

// handlePush receives resolved words from the word-resolver (directly
// or via Cloud Tasks) and forwards them to the session's socket. A
// session without a live connection is logged and dropped.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var resolved events.ResolvedWord
	if err := json.NewDecoder(r.Body).Decode(&resolved); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if resolved.SessionID == "" {
		http.Error(w, `{"error":"session_id required"}`, http.StatusBadRequest)
		return
	}

	delivered := s.Push(r.Context(), resolved)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"delivered": delivered})
}

// Push delivers a resolved word to the connection owning its session.
func (s *Server) Push(ctx context.Context, resolved events.ResolvedWord) bool {
	connectionID, err := s.registry.Lookup(ctx, resolved.SessionID)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			s.logger.Printf("⚠️ session lookup %s: %v", resolved.SessionID, err)
		}
		s.logger.Printf("⚠️ no connection for session %s, dropping word %q", resolved.SessionID, resolved.RawWord)
		return false
	}

	s.mu.RLock()
	c, ok := s.clients[connectionID]
	s.mu.RUnlock()
	if !ok {
		s.logger.Printf("⚠️ connection %s gone, dropping word %q", connectionID, resolved.RawWord)
		return false
	}

	payload, err := events.Marshal(resolved)
	if err != nil {
		s.logger.Printf("❌ marshal resolved word: %v", err)
		return false
	}
	return c.enqueue(payload)
}

func (s *Server) dropClient(connectionID string) {
	s.mu.Lock()
	delete(s.clients, connectionID)
	s.mu.Unlock()
	s.limiter.forget(connectionID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.registry.Remove(ctx, connectionID); err != nil {
		s.logger.Printf("⚠️ remove connection %s: %v", connectionID, err)
	}
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
