package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/runtime"
)

// Inbound frame actions accepted from clients. Everything else the client
// does goes through the REST surface.
const (
	actionJoinChat    = "join_chat"
	actionLeaveChat   = "leave_chat"
	actionTypingStart = "typing_start"
	actionTypingStop  = "typing_stop"
)

type inboundFrame struct {
	Action string `json:"action"`
	ChatID string `json:"chatId"`
}

// Gateway upgrades HTTP connections into authenticated sessions and keeps
// the presence registry in sync with their lifecycle.
type Gateway struct {
	log        *slog.Logger
	registry   *runtime.Registry
	router     contract.Router
	users      contract.UserStore
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewGateway(log *slog.Logger, registry *runtime.Registry, router contract.Router, users contract.UserStore, bufferSize int) *Gateway {
	g := &Gateway{
		log:        log,
		registry:   registry,
		router:     router,
		users:      users,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	registry.OnPresenceChange(g.presenceChanged)
	return g
}

// ServeHTTP authenticates the token carried in the query string (or the
// bearer header), upgrades the connection and runs the session until the
// peer goes away. Invalid auth never reaches the upgrade.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	session := newSession(uuid.NewString(), claims.UserID, conn, g.bufferSize, g.log)
	g.registry.Register(session.UserID, session.ID, session)
	g.log.Info("Session connected", "session_id", session.ID, "user_id", session.UserID)

	go session.writePump()
	g.readPump(session)

	g.registry.Unregister(session.ID)
	session.close()
	g.log.Info("Session disconnected", "session_id", session.ID, "user_id", session.UserID)
}

// readPump dispatches inbound frames until the connection dies. Malformed
// frames are logged and skipped, not fatal.
func (g *Gateway) readPump(s *Session) {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("Session read failed", "session_id", s.ID, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			g.log.Warn("Discarding malformed frame", "session_id", s.ID, "error", err)
			continue
		}
		g.dispatch(s, frame)
	}
}

func (g *Gateway) dispatch(s *Session, frame inboundFrame) {
	if frame.ChatID == "" {
		g.log.Warn("Discarding frame without chat id", "session_id", s.ID, "action", frame.Action)
		return
	}

	switch frame.Action {
	case actionJoinChat:
		g.registry.JoinRoom(s.ID, frame.ChatID)
	case actionLeaveChat:
		g.registry.LeaveRoom(s.ID, frame.ChatID)
	case actionTypingStart:
		g.router.SendToRoom(frame.ChatID, event.UserTyping(s.UserID, frame.ChatID, true), s.ID)
	case actionTypingStop:
		g.router.SendToRoom(frame.ChatID, event.UserTyping(s.UserID, frame.ChatID, false), s.ID)
	default:
		g.log.Warn("Discarding unknown action", "session_id", s.ID, "action", frame.Action)
	}
}

// presenceChanged persists the online flag and tells the user's contacts.
// Strictly best-effort on both sides; a store hiccup must not break the
// connection lifecycle.
func (g *Gateway) presenceChanged(userID string, online bool) {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := g.users.SetUserPresence(ctx, userID, online, now); err != nil {
		g.log.Warn("Failed to persist presence", "user_id", userID, "error", err)
	}

	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		g.log.Warn("Presence broadcast skipped, unknown user", "user_id", userID, "error", err)
		return
	}

	status := event.ContactStatus(userID, online, now)
	for _, phone := range user.Contacts {
		contact, err := g.users.GetUserByPhone(ctx, phone)
		if err != nil {
			continue
		}
		g.router.SendToUser(contact.ID, status)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
