// Package observability exposes the relay's Prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "active_sessions",
		Help:      "Number of live authenticated sessions.",
	})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "deliveries_total",
		Help:      "Events handed to a live session sink, by event name.",
	}, []string{"event"})

	OfflineDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "offline_drops_total",
		Help:      "Events addressed to a user with zero sessions, by event name.",
	}, []string{"event"})

	SinkDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "sink_drops_total",
		Help:      "Events dropped because a session sink could not accept them.",
	}, []string{"event"})

	CallTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "call_transitions_total",
		Help:      "Successful call state transitions, by resulting status.",
	}, []string{"status"})

	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "push_failures_total",
		Help:      "Best-effort push notifications that failed to deliver.",
	})

	PushDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "push_drops_total",
		Help:      "Push jobs dropped because the queue was full.",
	})
)
