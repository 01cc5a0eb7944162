package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain/event"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string // userID
	fail  bool
	woken chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{woken: make(chan struct{}, 64)}
}

func (s *recordingSender) Send(_ context.Context, userID string, _ event.Event) error {
	s.mu.Lock()
	s.sent = append(s.sent, userID)
	fail := s.fail
	s.mu.Unlock()
	s.woken <- struct{}{}
	if fail {
		return fmt.Errorf("gateway unreachable")
	}
	return nil
}

func (s *recordingSender) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.sent...)
}

func (s *recordingSender) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.woken:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for push %d of %d", i+1, n)
		}
	}
}

func TestWorker(t *testing.T) {
	t.Run("should drain queued jobs in order", func(t *testing.T) {
		req := require.New(t)
		queue := NewQueue(slog.Default(), 8)
		sender := newRecordingSender()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = NewWorker(slog.Default(), queue, sender).Run(ctx) }()

		queue.Notify("alice", event.CallRejected("call-1"))
		queue.Notify("bob", event.CallRejected("call-1"))
		sender.waitFor(t, 2)

		req.Equal([]string{"alice", "bob"}, sender.Sent())
	})

	t.Run("should keep running after a delivery failure", func(t *testing.T) {
		req := require.New(t)
		queue := NewQueue(slog.Default(), 8)
		sender := newRecordingSender()
		sender.fail = true

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = NewWorker(slog.Default(), queue, sender).Run(ctx) }()

		queue.Notify("alice", event.CallRejected("call-1"))
		sender.waitFor(t, 1)

		sender.mu.Lock()
		sender.fail = false
		sender.mu.Unlock()

		queue.Notify("bob", event.CallRejected("call-1"))
		sender.waitFor(t, 1)

		req.Equal([]string{"alice", "bob"}, sender.Sent())
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		req := require.New(t)
		queue := NewQueue(slog.Default(), 1)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- NewWorker(slog.Default(), queue, newRecordingSender()).Run(ctx) }()

		cancel()
		select {
		case err := <-done:
			req.ErrorIs(err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
	})
}

func TestQueue_NeverBlocks(t *testing.T) {
	req := require.New(t)
	queue := NewQueue(slog.Default(), 2)

	// No worker attached: the third job overflows and is dropped without
	// blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			queue.Notify("alice", event.CallRejected("call-1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	req.Len(queue.jobs, 2)
}
