package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	pollsTotal        atomic.Uint64
	pollFailures      atomic.Uint64
	eventsDelivered   atomic.Uint64
	notificationsSent atomic.Uint64
	reconnects        atomic.Uint64
	errorsTotal       atomic.Uint64

	// Gauges
	activeSubscriptions atomic.Int32
	activeWatchers      atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordPoll records one status refresh attempt.
func (m *Metrics) RecordPoll() {
	m.pollsTotal.Add(1)
}

// RecordPollFailure records a swallowed refresh failure.
func (m *Metrics) RecordPollFailure() {
	m.pollFailures.Add(1)
	m.errorsTotal.Add(1)
}

// RecordEventDelivered records one push event reaching a channel binding.
func (m *Metrics) RecordEventDelivered() {
	m.eventsDelivered.Add(1)
}

// RecordNotification records a fired toast/sound/desktop notification.
func (m *Metrics) RecordNotification() {
	m.notificationsSent.Add(1)
}

// RecordReconnect records a successful transport (re)connection.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// SetActiveSubscriptions sets the live push channel count.
func (m *Metrics) SetActiveSubscriptions(count int32) {
	m.activeSubscriptions.Store(count)
}

// IncrementWatchers increments the live payment watcher count.
func (m *Metrics) IncrementWatchers() {
	m.activeWatchers.Add(1)
}

// DecrementWatchers decrements the live payment watcher count.
func (m *Metrics) DecrementWatchers() {
	m.activeWatchers.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	PollsTotal          uint64
	PollFailures        uint64
	EventsDelivered     uint64
	NotificationsSent   uint64
	Reconnects          uint64
	ErrorsTotal         uint64
	ActiveSubscriptions int32
	ActiveWatchers      int32
	Timestamp           time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		PollsTotal:          m.pollsTotal.Load(),
		PollFailures:        m.pollFailures.Load(),
		EventsDelivered:     m.eventsDelivered.Load(),
		NotificationsSent:   m.notificationsSent.Load(),
		Reconnects:          m.reconnects.Load(),
		ErrorsTotal:         m.errorsTotal.Load(),
		ActiveSubscriptions: m.activeSubscriptions.Load(),
		ActiveWatchers:      m.activeWatchers.Load(),
		Timestamp:           time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.pollsTotal.Store(0)
	m.pollFailures.Store(0)
	m.eventsDelivered.Store(0)
	m.notificationsSent.Store(0)
	m.reconnects.Store(0)
	m.errorsTotal.Store(0)
	m.activeSubscriptions.Store(0)
	m.activeWatchers.Store(0)
}
