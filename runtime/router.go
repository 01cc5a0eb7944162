package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// DeliveryRouter pushes events to live sessions resolved through the
// Registry. Ordering is guaranteed per target session only: each sink is a
// single ordered channel, and the router emits in caller order. A user with
// zero sessions is a silent drop; queuing for offline users belongs to the
// push collaborator, invoked by the services, never here.
type DeliveryRouter struct {
	registry *Registry
	log      *slog.Logger
}

func NewDeliveryRouter(log *slog.Logger, registry *Registry) *DeliveryRouter {
	return &DeliveryRouter{registry: registry, log: log}
}

func (r *DeliveryRouter) SendToUser(userID string, e event.Event) {
	sinks := r.registry.SinksFor(userID)
	if len(sinks) == 0 {
		observability.OfflineDrops.WithLabelValues(e.Name).Inc()
		return
	}
	r.emit(sinks, e)
}

func (r *DeliveryRouter) SendToRoom(roomID string, e event.Event, excludeSessionID string) {
	r.emit(r.registry.RoomSinks(roomID, excludeSessionID), e)
}

func (r *DeliveryRouter) emit(sinks []contract.EventSink, e event.Event) {
	for _, sink := range sinks {
		if err := sink.Consume(context.Background(), e); err != nil {
			observability.SinkDrops.WithLabelValues(e.Name).Inc()
			r.log.Warn(fmt.Sprintf("Dropping %s event for saturated session", e.Name), "error", err)
			continue
		}
		observability.Deliveries.WithLabelValues(e.Name).Inc()
	}
}
