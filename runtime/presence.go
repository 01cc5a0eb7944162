// Package runtime owns the relay's shared mutable state: the presence
// registry and the delivery router. It addresses and emits, nothing more;
// business rules live in the services.
package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/observability"
)

type sessionEntry struct {
	userID string
	sink   contract.EventSink
}

// Registry is the bidirectional user/session index. Forward (user to session
// set) and inverse (session to user) maps mutate under a single mutex, so a
// reader can never observe a handle whose inverse mapping is gone.
//
// A user may hold several concurrent sessions (multi-device); an empty set
// means unreachable. Room membership is tracked per session handle for
// ephemeral room-addressed signals like typing indicators.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]sessionEntry        // session handle -> owner + sink
	userSessions map[string]map[string]struct{} // user -> session handles
	roomSessions map[string]map[string]struct{} // room -> session handles
	sessionRooms map[string]map[string]struct{} // session handle -> rooms, for teardown

	onChange func(userID string, online bool)
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]sessionEntry),
		userSessions: make(map[string]map[string]struct{}),
		roomSessions: make(map[string]map[string]struct{}),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// OnPresenceChange installs the callback fired when a user's session count
// crosses the zero boundary in either direction. The callback runs outside
// the registry lock. Must be set before the first Register.
func (r *Registry) OnPresenceChange(fn func(userID string, online bool)) {
	r.onChange = fn
}

// Register binds a session handle to a user. Idempotent per handle:
// re-registering an existing handle under the same user only refreshes its
// sink. A handle rebound to a different user is first removed from the
// previous owner's set, so the forward and inverse maps never disagree.
func (r *Registry) Register(userID, sessionID string, sink contract.EventSink) {
	r.mu.Lock()
	prev, existed := r.sessions[sessionID]
	if existed && prev.userID == userID {
		r.sessions[sessionID] = sessionEntry{userID: userID, sink: sink}
		r.mu.Unlock()
		return
	}

	prevOffline := false
	if existed {
		if set, ok := r.userSessions[prev.userID]; ok {
			delete(set, sessionID)
			if len(set) == 0 {
				delete(r.userSessions, prev.userID)
				prevOffline = true
			}
		}
	}

	r.sessions[sessionID] = sessionEntry{userID: userID, sink: sink}
	if _, ok := r.userSessions[userID]; !ok {
		r.userSessions[userID] = make(map[string]struct{})
	}
	r.userSessions[userID][sessionID] = struct{}{}
	cameOnline := len(r.userSessions[userID]) == 1
	r.mu.Unlock()

	if !existed {
		observability.ActiveSessions.Inc()
	}
	if prevOffline && r.onChange != nil {
		r.onChange(prev.userID, false)
	}
	if cameOnline && r.onChange != nil {
		r.onChange(userID, true)
	}
}

// Unregister removes a session handle from both maps and from every room it
// joined. Unknown handles are a no-op, which makes duplicate disconnect
// events harmless.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)

	wentOffline := false
	if set, ok := r.userSessions[entry.userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.userSessions, entry.userID)
			wentOffline = true
		}
	}

	for roomID := range r.sessionRooms[sessionID] {
		if members, ok := r.roomSessions[roomID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(r.roomSessions, roomID)
			}
		}
	}
	delete(r.sessionRooms, sessionID)
	r.mu.Unlock()

	observability.ActiveSessions.Dec()
	if wentOffline && r.onChange != nil {
		r.onChange(entry.userID, false)
	}
}

// SessionsFor returns a copy of the user's current session handles. An
// empty result means the user is not reachable right now.
func (r *Registry) SessionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handles []string
	for sessionID := range r.userSessions[userID] {
		handles = append(handles, sessionID)
	}
	return handles
}

// SinksFor resolves the user's live sinks for the router.
func (r *Registry) SinksFor(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for sessionID := range r.userSessions[userID] {
		if entry, ok := r.sessions[sessionID]; ok {
			sinks = append(sinks, entry.sink)
		}
	}
	return sinks
}

// JoinRoom subscribes a session to a room channel. Unknown sessions are
// ignored; a room only ever references live handles.
func (r *Registry) JoinRoom(sessionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return
	}
	if _, ok := r.roomSessions[roomID]; !ok {
		r.roomSessions[roomID] = make(map[string]struct{})
	}
	r.roomSessions[roomID][sessionID] = struct{}{}
	if _, ok := r.sessionRooms[sessionID]; !ok {
		r.sessionRooms[sessionID] = make(map[string]struct{})
	}
	r.sessionRooms[sessionID][roomID] = struct{}{}
}

func (r *Registry) LeaveRoom(sessionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.roomSessions[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.roomSessions, roomID)
		}
	}
	if rooms, ok := r.sessionRooms[sessionID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.sessionRooms, sessionID)
		}
	}
}

// RoomSinks resolves the sinks of every session subscribed to a room,
// excluding one handle (typically the emitting session).
func (r *Registry) RoomSinks(roomID, excludeSessionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for sessionID := range r.roomSessions[roomID] {
		if sessionID == excludeSessionID {
			continue
		}
		if entry, ok := r.sessions[sessionID]; ok {
			sinks = append(sinks, entry.sink)
		}
	}
	return sinks
}

// UserOf returns the identity owning a session handle.
func (r *Registry) UserOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	return entry.userID, ok
}
