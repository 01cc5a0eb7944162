package notifications

import (
	"context"
	"log/slog"

	"chat-relay/domain/event"
	"chat-relay/observability"
)

// Sender hands one push to the device gateway. Implementations may block;
// the worker absorbs their latency.
type Sender interface {
	Send(ctx context.Context, userID string, e event.Event) error
}

// LogSender is the development sender: it records the push and succeeds.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, userID string, e event.Event) error {
	s.log.Info("Push notification", "user_id", userID, "event", e.Name)
	return nil
}

// Worker drains the queue one job at a time. Delivery failures are counted
// and logged, never propagated: a dead gateway must not take the relay
// down with it. Runs under the supervisor.
type Worker struct {
	log    *slog.Logger
	queue  *Queue
	sender Sender
}

func NewWorker(log *slog.Logger, queue *Queue, sender Sender) *Worker {
	return &Worker{log: log, queue: queue, sender: sender}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-w.queue.jobs:
			if err := w.sender.Send(ctx, j.UserID, j.Event); err != nil {
				observability.PushFailures.Inc()
				w.log.Warn("Push delivery failed", "user_id", j.UserID, "event", j.Event.Name, "error", err)
			}
		}
	}
}
