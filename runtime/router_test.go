package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain/event"
)

type saturatedSink struct{}

func (saturatedSink) Consume(context.Context, event.Event) error {
	return fmt.Errorf("send buffer full")
}

func TestDeliveryRouter_SendToUser(t *testing.T) {
	t.Run("should deliver to every session of the user", func(t *testing.T) {
		req := require.New(t)
		registry := NewRegistry()
		router := NewDeliveryRouter(slog.Default(), registry)

		first, second := &recordingSink{}, &recordingSink{}
		registry.Register("alice", "s1", first)
		registry.Register("alice", "s2", second)

		router.SendToUser("alice", event.CallRejected("call-1"))

		req.Len(first.Events(), 1)
		req.Len(second.Events(), 1)
	})

	t.Run("should silently drop when the user has no session", func(t *testing.T) {
		registry := NewRegistry()
		router := NewDeliveryRouter(slog.Default(), registry)

		// No panic, no error: offline delivery is the push collaborator's job.
		router.SendToUser("nobody", event.CallRejected("call-1"))
	})

	t.Run("should preserve caller order per session", func(t *testing.T) {
		req := require.New(t)
		registry := NewRegistry()
		router := NewDeliveryRouter(slog.Default(), registry)

		sink := &recordingSink{}
		registry.Register("alice", "s1", sink)

		for i := 0; i < 10; i++ {
			router.SendToUser("alice", event.CallEnded(fmt.Sprintf("call-%d", i), 0))
		}

		events := sink.Events()
		req.Len(events, 10)
		for i, e := range events {
			payload := e.Data.(event.CallEndedPayload)
			req.Equal(fmt.Sprintf("call-%d", i), payload.CallID)
		}
	})

	t.Run("should keep delivering to other sessions when one sink rejects", func(t *testing.T) {
		req := require.New(t)
		registry := NewRegistry()
		router := NewDeliveryRouter(slog.Default(), registry)

		healthy := &recordingSink{}
		registry.Register("alice", "s1", saturatedSink{})
		registry.Register("alice", "s2", healthy)

		router.SendToUser("alice", event.CallRejected("call-1"))

		req.Len(healthy.Events(), 1)
	})
}

func TestDeliveryRouter_SendToRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewDeliveryRouter(slog.Default(), registry)

	alice, bob := &recordingSink{}, &recordingSink{}
	registry.Register("alice", "s1", alice)
	registry.Register("bob", "s2", bob)
	registry.JoinRoom("s1", "chat42")
	registry.JoinRoom("s2", "chat42")

	router.SendToRoom("chat42", event.UserTyping("alice", "chat42", true), "s1")

	req.Empty(alice.Events(), "typing indicator must not echo to the emitter")
	req.Len(bob.Events(), 1)
}
