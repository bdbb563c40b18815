// Package session owns the per-connection state machine: it races inbound
// reads, broadcast delivery, and the idle timer, and serializes all writes to
// the connection.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/colorpulse/internal/admission"
	"github.com/pscheid92/colorpulse/internal/hub"
	"github.com/pscheid92/colorpulse/internal/logging"
	"github.com/pscheid92/colorpulse/internal/metrics"
	"github.com/pscheid92/colorpulse/internal/tally"
)

// MaxPayloadBytes is the inbound frame ceiling. The longest valid color token
// is six bytes, so anything beyond this is abnormal by construction.
const MaxPayloadBytes = 10

const writeDeadline = 5 * time.Second

// inboundReadLimit caps how many bytes of a single inbound frame are ever
// buffered. Frames between MaxPayloadBytes and this limit still get the
// explicit abnormal-payload close; anything larger is cut off mid-read.
const inboundReadLimit = 512

// Config carries the per-session tunables.
type Config struct {
	IdleTimeout        time.Duration
	MinMessageInterval time.Duration
}

// Session is the server-side state for one live WebSocket connection. Two
// logical producers write to the connection (the broadcast relay and the
// direct initial send), so every write serializes through writeMu.
type Session struct {
	id      uuid.UUID
	conn    *websocket.Conn
	clock   clockwork.Clock
	tally   *tally.Tally
	hub     *hub.Hub
	slot    *admission.Slot
	cfg     Config
	writeMu sync.Mutex
	log     *slog.Logger
}

func New(conn *websocket.Conn, tl *tally.Tally, h *hub.Hub, slot *admission.Slot, clock clockwork.Clock, cfg Config) *Session {
	id := uuid.New()
	return &Session{
		id:    id,
		conn:  conn,
		clock: clock,
		tally: tl,
		hub:   h,
		slot:  slot,
		cfg:   cfg,
		log:   logging.WithSession(id.String()),
	}
}

// Run drives the session to completion and blocks until the connection is
// closed. The admission slot is released and the user gauges decremented on
// every exit path.
func (s *Session) Run(ctx context.Context) {
	defer s.slot.Release()

	concurrent, cumulative := s.tally.UserConnected()
	metrics.ConcurrentUsers.Inc()
	metrics.UsersTotal.Inc()
	s.log.Debug("session started", "concurrent_users", concurrent)

	defer func() {
		remaining := s.tally.UserDisconnected()
		metrics.ConcurrentUsers.Dec()
		s.log.Debug("session closed", "concurrent_users", remaining)
	}()

	sub := s.hub.Subscribe()
	defer sub.Close()

	if err := s.sendInitial(cumulative); err != nil {
		s.log.Error("sending initial state failed", "error", err)
		_ = s.conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First completion wins; the buffered channel lets the losers finish
	// their send and exit after cancellation.
	done := make(chan CloseReason, 3)
	go s.watchIdle(ctx, done)
	go s.readMessages(done)
	go s.relayBroadcasts(ctx, sub, done)

	reason := <-done
	cancel()

	s.close(reason)
}

// sendInitial broadcasts the join notification to everyone and then delivers
// the private tally snapshot directly to this connection.
func (s *Session) sendInitial(cumulative uint64) error {
	join, err := json.Marshal(map[string]uint64{"total_users": cumulative})
	if err != nil {
		return fmt.Errorf("serializing join event: %w", err)
	}
	s.hub.Publish(join)

	snap := s.tally.Snapshot()
	initial := make(map[string]uint64, len(snap.Counts)+2)
	for color, value := range snap.Counts {
		initial[color] = value
	}
	initial["total"] = snap.Total
	initial["total_users"] = cumulative

	payload, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("serializing initial snapshot: %w", err)
	}
	if err := s.write(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("sending initial snapshot: %w", err)
	}
	return nil
}

func (s *Session) watchIdle(ctx context.Context, done chan<- CloseReason) {
	timer := s.clock.NewTimer(s.cfg.IdleTimeout)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		done <- ReasonTimeout
	case <-ctx.Done():
	}
}

func (s *Session) readMessages(done chan<- CloseReason) {
	s.conn.SetReadLimit(inboundReadLimit)
	throttle := NewThrottle(s.clock, s.cfg.MinMessageInterval)

	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if isExpectedClose(err) {
				done <- ReasonNone
			} else {
				s.log.Debug("websocket read error", "error", err)
				done <- ReasonReadError
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if !throttle.Allow() {
			metrics.RateLimitedMessagesTotal.Inc()
			s.log.Debug("rate limit exceeded")
			continue
		}

		if len(payload) > MaxPayloadBytes {
			s.log.Error("payload larger than byte ceiling", "bytes", len(payload))
			done <- ReasonAbnormalPayload
			return
		}

		color := string(payload)
		value, ok := s.tally.Increment(color)
		if !ok {
			s.log.Error("invalid color received", "color", color)
			done <- ReasonInvalidColor
			return
		}
		total := s.tally.IncrementTotal()
		metrics.VotesTotal.WithLabelValues(color).Inc()

		event, err := json.Marshal(map[string]uint64{color: value, "total": total})
		if err != nil {
			// Dropped update, not a dropped session.
			s.log.Error("failed to serialize update", "error", err)
			continue
		}
		s.hub.Publish(event)
	}
}

func (s *Session) relayBroadcasts(ctx context.Context, sub *hub.Subscription, done chan<- CloseReason) {
	for {
		event, missed, err := sub.Receive(ctx)
		if err != nil {
			return
		}
		if missed > 0 {
			s.log.Warn("subscriber lagged behind broadcasts", "missed", missed)
		}
		if err := s.write(websocket.TextMessage, event); err != nil {
			s.log.Debug("websocket sending error", "error", err)
			done <- ReasonWriteError
			return
		}
	}
}

func (s *Session) write(messageType int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
	return s.conn.WriteMessage(messageType, payload)
}

// close sends the best-effort close frame carrying the reason, then tears the
// connection down. A clean peer close (ReasonNone) gets no frame.
func (s *Session) close(reason CloseReason) {
	metrics.SessionsClosedTotal.WithLabelValues(reasonLabel(reason)).Inc()

	if reason != ReasonNone {
		frame := websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, string(reason))
		if err := s.write(websocket.CloseMessage, frame); err != nil {
			s.log.Debug("close frame delivery failed", "error", err)
		}
	}
	_ = s.conn.Close()
}

func reasonLabel(reason CloseReason) string {
	if reason == ReasonNone {
		return "peer_closed"
	}
	return string(reason)
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
