//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// EventSink is one ordered delivery target, typically the outbound channel
// of a live session. Consume must not block the caller: a sink that cannot
// keep up drops and reports the error.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Presence is the authoritative user-to-session index. Both directions of
// the mapping update under one critical section so a lookup never observes
// a torn state.
type Presence interface {
	Register(userID, sessionID string, sink EventSink)
	Unregister(sessionID string)
	SessionsFor(userID string) []string
	JoinRoom(sessionID, roomID string)
	LeaveRoom(sessionID, roomID string)
}

// Router resolves reachable sessions and emits events. Pure addressing, no
// business logic: a user with zero sessions is a silent drop, offline
// delivery belongs to the push collaborator.
type Router interface {
	SendToUser(userID string, e event.Event)
	SendToRoom(roomID string, e event.Event, excludeSessionID string)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByPhone(ctx context.Context, phone string) (domain.User, error)
	SaveUser(ctx context.Context, u domain.User) error
	SetUserPresence(ctx context.Context, id string, online bool, at time.Time) error
}

type ChatStore interface {
	GetChat(ctx context.Context, id string) (domain.Chat, error)
	SaveChat(ctx context.Context, c domain.Chat) error
	SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error
}

type MessageStore interface {
	SaveMessage(ctx context.Context, m domain.Message) error
	GetMessage(ctx context.Context, id string) (domain.Message, error)
	// UpdateMessage applies fn to the stored record inside one store
	// transaction and returns the updated record.
	UpdateMessage(ctx context.Context, id string, fn func(*domain.Message) error) (domain.Message, error)
	// ListMessages returns non-tombstoned messages of a chat, newest first,
	// with cursor pagination.
	ListMessages(ctx context.Context, chatID string, cursor *string) ([]domain.Message, *string, error)
	// UnreadMessageIDs lists ids of chat messages not yet read by userID,
	// tombstoned records included.
	UnreadMessageIDs(ctx context.Context, chatID, userID string) ([]string, error)
}

type CallStore interface {
	SaveCall(ctx context.Context, c domain.Call) error
	GetCall(ctx context.Context, id string) (domain.Call, error)
	// UpdateCall applies fn to the stored record inside one store
	// transaction and returns the updated record.
	UpdateCall(ctx context.Context, id string, fn func(*domain.Call) error) (domain.Call, error)
	ListCallsByUser(ctx context.Context, userID string, page, limit int) ([]domain.Call, error)
	ListActiveCalls(ctx context.Context, userID string) ([]domain.Call, error)
}

// Encryptor protects message content at rest. The relay stores ciphertext
// and key with the record and fans out plaintext to live sessions.
type Encryptor interface {
	Encrypt(plaintext string) (ciphertext string, key string, err error)
	Decrypt(ciphertext, key string) (string, error)
}

// PushNotifier reaches participants with zero active sessions. Strictly
// best-effort: Notify never blocks and failures never propagate to the
// operation that triggered it.
type PushNotifier interface {
	Notify(userID string, e event.Event)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
