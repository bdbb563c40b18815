// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vote and user metrics
var (
	// VotesTotal counts accepted votes by color.
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_total",
			Help: "Total accepted votes by color",
		},
		[]string{"color"},
	)

	// ConcurrentUsers tracks the number of live WebSocket sessions.
	ConcurrentUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "concurrent_users",
			Help: "Number of live WebSocket sessions",
		},
	)

	// UsersTotal counts cumulative WebSocket sessions over the process lifetime.
	UsersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "users_total",
			Help: "Cumulative WebSocket sessions since process start",
		},
	)
)

// Session and connection metrics
var (
	// SessionsClosedTotal counts terminated sessions by close reason.
	SessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_closed_total",
			Help: "Terminated sessions by close reason",
		},
		[]string{"reason"},
	)

	// ConnectionsRejectedTotal counts connections rejected before a session
	// was created, by rejection reason.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_rejected_total",
			Help: "Connections rejected before session creation by reason",
		},
		[]string{"reason"},
	)

	// RateLimitedMessagesTotal counts inbound messages dropped by the
	// per-session throttle.
	RateLimitedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_messages_total",
			Help: "Inbound messages dropped by the per-session throttle",
		},
	)
)

// Broadcast metrics
var (
	// BroadcastEventsDroppedTotal counts events skipped because a subscriber
	// lagged behind the publish rate.
	BroadcastEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_events_dropped_total",
			Help: "Broadcast events skipped for lagging subscribers",
		},
	)

	// BroadcastSubscribers tracks current hub subscriptions.
	BroadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers",
			Help: "Current broadcast hub subscriptions",
		},
	)
)

// Snapshot persistence metrics
var (
	// SnapshotPersistsTotal counts snapshot persistence attempts by status.
	SnapshotPersistsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_persists_total",
			Help: "Tally snapshot persistence attempts by status",
		},
		[]string{"status"},
	)

	// SnapshotCircuitState reports the snapshot store circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	SnapshotCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_circuit_breaker_state",
			Help: "Snapshot store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
