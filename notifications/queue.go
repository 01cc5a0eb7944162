// Package notifications is the best-effort push path for users with zero
// live sessions. A bounded queue decouples the fan-out pipeline from the
// push gateway: enqueueing never blocks and a full queue drops the job.
package notifications

import (
	"log/slog"

	"chat-relay/domain/event"
	"chat-relay/observability"
)

type job struct {
	UserID string
	Event  event.Event
}

// Queue implements contract.PushNotifier. Jobs are drained by a supervised
// Worker; losing one on overflow is acceptable, blocking a send is not.
type Queue struct {
	log  *slog.Logger
	jobs chan job
}

func NewQueue(log *slog.Logger, size int) *Queue {
	return &Queue{
		log:  log,
		jobs: make(chan job, size),
	}
}

func (q *Queue) Notify(userID string, e event.Event) {
	select {
	case q.jobs <- job{UserID: userID, Event: e}:
	default:
		observability.PushDrops.Inc()
		q.log.Warn("Push queue full, dropping job", "user_id", userID, "event", e.Name)
	}
}
