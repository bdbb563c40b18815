// Package hub implements the shared broadcast channel that fans tally updates
// out to every live session.
package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pscheid92/colorpulse/internal/metrics"
)

// ErrClosed is returned by Receive after the subscription has been closed.
// A closed subscription never resumes; callers must subscribe again.
var ErrClosed = errors.New("hub: subscription closed")

// Hub distributes published events to all current subscribers. Publishing
// never blocks: a subscriber that cannot keep up loses its oldest queued
// events and observes the gap through the missed count on its next receive.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

// New creates a hub whose subscriptions each buffer up to buffer events.
func New(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Publish enqueues event for every current subscriber. With zero subscribers
// it is a no-op; a listener gap between sessions is expected, not an error.
func (h *Hub) Publish(event []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		sub.offer(event)
	}
}

// Subscribe attaches a new subscription. It observes only events published
// after this call; there is no replay of history.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub:    h,
		events: make(chan []byte, h.buffer),
		closed: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	metrics.BroadcastSubscribers.Inc()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscription is one session's receiving end of the hub.
type Subscription struct {
	hub    *Hub
	events chan []byte
	missed atomic.Int64
	once   sync.Once
	closed chan struct{}
}

// offer enqueues without ever blocking the publisher. When the queue is full
// the oldest retained event is skipped so the subscriber resumes from the most
// recent entries.
func (s *Subscription) offer(event []byte) {
	select {
	case s.events <- event:
		return
	default:
	}

	select {
	case <-s.events:
		s.missed.Add(1)
		metrics.BroadcastEventsDroppedTotal.Inc()
	default:
	}

	select {
	case s.events <- event:
	default:
		s.missed.Add(1)
		metrics.BroadcastEventsDroppedTotal.Inc()
	}
}

// Receive blocks until the next event is available. missed reports how many
// events were skipped since the previous receive because this subscriber
// lagged behind the publish rate.
func (s *Subscription) Receive(ctx context.Context) (event []byte, missed int64, err error) {
	select {
	case event := <-s.events:
		return event, s.missed.Swap(0), nil
	case <-s.closed:
		return nil, 0, ErrClosed
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

// Close detaches the subscription from the hub. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()

		close(s.closed)
		metrics.BroadcastSubscribers.Dec()
	})
}
