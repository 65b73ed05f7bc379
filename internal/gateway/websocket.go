package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glossa/backend/internal/classifier"
	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/monitoring"
)

// In production (GLOSSA_ENV=production), only origins listed in
// GLOSSA_ALLOWED_ORIGINS are accepted. Dev and staging allow all.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     buildCheckOrigin(),
}

const (
	pongWait   = 60 * time.Second // Time allowed to read the next pong
	pingPeriod = 30 * time.Second // Send pings at this interval (must be < pongWait)
	writeWait  = 10 * time.Second // Time allowed to write a message
	maxMsgSize = 512 * 1024       // A 1662-float frame is ~40KB of JSON
	sendBuffer = 256              // Per-client outbound channel buffer
)

func buildCheckOrigin() func(r *http.Request) bool {
	env := os.Getenv("GLOSSA_ENV")
	allowedRaw := os.Getenv("GLOSSA_ALLOWED_ORIGINS")

	if env == "production" && allowedRaw != "" {
		allowed := make(map[string]bool)
		for _, origin := range strings.Split(allowedRaw, ",") {
			allowed[strings.TrimSpace(origin)] = true
		}
		slog.Info("websocket origin allowlist active", "count", len(allowed))
		return func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				return true
			}
			slog.Warn("rejected websocket origin", "origin", origin)
			return false
		}
	}

	if env == "production" && allowedRaw == "" {
		slog.Warn("GLOSSA_ALLOWED_ORIGINS not set in production, allowing all origins")
	}
	return func(*http.Request) bool { return true }
}

// clientMessage is what the browser sends over the socket.
type clientMessage struct {
	Action    string    `json:"action"`
	SessionID string    `json:"session_id,omitempty"`
	Data      []float64 `json:"data,omitempty"`
}

// client is one live websocket connection. All writes go through the
// send channel and writePump; readPump owns all reads.
type client struct {
	server *Server
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.server.dropClient(c.id)
		c.conn.Close()
		slog.Info("websocket disconnected", "connection_id", c.id)
	})
}

// enqueue hands a payload to the write pump without blocking; a full
// buffer drops the payload.
func (c *client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		slog.Warn("send buffer full, dropping payload", "connection_id", c.id)
		return false
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("websocket write failed", "connection_id", c.id, "error", err)
				return
			}

			// Drain queued messages in the same wakeup.
			n := len(c.send)
			for i := 0; i < n; i++ {
				msg := <-c.send
				if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					slog.Warn("websocket batch write failed", "connection_id", c.id, "error", err)
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "connection_id", c.id, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.enqueue(errorAck("malformed message"))
			monitoring.FramesRejected.WithLabelValues("malformed").Inc()
			continue
		}

		switch msg.Action {
		case "sendlandmarks":
			c.server.handleFrame(c, msg)
		case "disconnect":
			return
		default:
			c.enqueue(errorAck("unknown action"))
		}
	}
}

func okAck() []byte {
	return []byte(`{"status":"ok"}`)
}

func errorAck(reason string) []byte {
	data, _ := json.Marshal(map[string]string{"status": "error", "error": reason})
	return data
}

// validateFrame checks the landmark payload shape: exact length, all
// values finite.
func validateFrame(data []float64) string {
	if len(data) != classifier.FrameLength {
		return "wrong_length"
	}
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "non_finite"
		}
	}
	return ""
}

// handleFrame validates, registers and enqueues one landmark frame.
// Registry failures are logged but never block ingestion.
func (s *Server) handleFrame(c *client, msg clientMessage) {
	if !s.limiter.allow(c.id) {
		c.enqueue(errorAck("rate limit exceeded"))
		monitoring.FramesRejected.WithLabelValues("rate_limited").Inc()
		return
	}

	if reason := validateFrame(msg.Data); reason != "" {
		c.enqueue(errorAck("invalid landmarks: " + reason))
		monitoring.FramesRejected.WithLabelValues(reason).Inc()
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = c.id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.registry.Touch(ctx, c.id, sessionID); err != nil {
		s.logger.Printf("⚠️ registry update failed for %s: %v", c.id, err)
	}

	now := time.Now().UTC()
	frame := events.LandmarkFrame{
		SessionID:    sessionID,
		ConnectionID: c.id,
		TimestampMS:  now.UnixMilli(),
		Landmarks:    msg.Data,
		Metadata: events.FrameMetadata{
			Source:    "gateway",
			EventTime: now.Format(time.RFC3339Nano),
		},
	}
	payload, err := events.Marshal(frame)
	if err != nil {
		c.enqueue(errorAck("internal error"))
		return
	}
	if err := s.publisher.Publish(ctx, sessionID, payload); err != nil {
		s.logger.Printf("❌ publish frame for session %s: %v", sessionID, err)
		c.enqueue(errorAck("enqueue failed"))
		return
	}

	monitoring.FramesIngested.Inc()
	c.enqueue(okAck())
}
