package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue health is observable from counters alone: claimed minus done minus
// retried minus dead should hover near zero on a drained queue.
var (
	eventsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "town",
			Subsystem: "dispatch",
			Name:      "events_claimed_total",
			Help:      "Events leased from the queue.",
		},
	)

	eventsDone = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "town",
			Subsystem: "dispatch",
			Name:      "events_done_total",
			Help:      "Events handled successfully.",
		},
		[]string{"type"},
	)

	eventsRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "town",
			Subsystem: "dispatch",
			Name:      "events_retried_total",
			Help:      "Handler failures rescheduled with backoff.",
		},
		[]string{"type"},
	)

	eventsDead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "town",
			Subsystem: "dispatch",
			Name:      "events_dead_total",
			Help:      "Events parked after exhausting the attempt ceiling.",
		},
		[]string{"type"},
	)

	handleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "town",
			Subsystem: "dispatch",
			Name:      "handle_duration_seconds",
			Help:      "Handler execution latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)
