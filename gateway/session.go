// Package gateway owns the session lifecycle: WebSocket upgrade,
// authentication, presence registration and teardown. It translates between
// socket frames and the relay's events but holds no business rules.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 4 * 1024
)

// Session is one live authenticated connection. The buffered outbound
// channel drained by a single write pump is the relay's per-session
// ordering point; Consume never blocks the router.
type Session struct {
	ID        string
	UserID    string
	StartedAt time.Time

	conn *websocket.Conn
	out  chan event.Event
	log  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id, userID string, conn *websocket.Conn, bufferSize int, log *slog.Logger) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		conn:      conn,
		out:       make(chan event.Event, bufferSize),
		log:       log,
		done:      make(chan struct{}),
	}
}

// Consume queues an event for the write pump. A saturated session reports
// an error so the router can count the drop; it never blocks.
func (s *Session) Consume(_ context.Context, e event.Event) error {
	select {
	case s.out <- e:
		return nil
	case <-s.done:
		return fmt.Errorf("session %s closed", s.ID)
	default:
		return fmt.Errorf("session %s buffer full", s.ID)
	}
}

// writePump serializes every outbound frame and keeps the connection alive
// with pings. The single goroutine is what guarantees per-session ordering.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case e := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(e); err != nil {
				s.log.Warn("Session write failed", "session_id", s.ID, "error", err)
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
