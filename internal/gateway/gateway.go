// Package gateway validates and admits incoming WebSocket connections before
// any session state exists.
package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/colorpulse/internal/admission"
	"github.com/pscheid92/colorpulse/internal/hub"
	"github.com/pscheid92/colorpulse/internal/identity"
	"github.com/pscheid92/colorpulse/internal/metrics"
	"github.com/pscheid92/colorpulse/internal/session"
	"github.com/pscheid92/colorpulse/internal/tally"
)

// Config carries the gateway tunables.
type Config struct {
	AllowedOrigin        string
	HashSalt             string
	MaxConnectionsPerIP  int
	ConnectionsPerSecond float64
	ConnectionBurst      int
	Session              session.Config
}

// Gateway is the single entry point for new connections: origin check,
// identity derivation, rate and admission checks, then the WebSocket upgrade
// and session spawn. Everything up to the upgrade allocates no session state.
type Gateway struct {
	cfg        Config
	upgrader   websocket.Upgrader
	admissions *admission.Controller
	attempts   *attemptLimiter
	tally      *tally.Tally
	hub        *hub.Hub
	clock      clockwork.Clock
}

func New(cfg Config, tl *tally.Tally, h *hub.Hub, clock clockwork.Clock) *Gateway {
	return &Gateway{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is checked strictly before the upgrade is attempted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		admissions: admission.NewController(cfg.MaxConnectionsPerIP),
		attempts:   newAttemptLimiter(clock, cfg.ConnectionsPerSecond, cfg.ConnectionBurst),
		tally:      tl,
		hub:        h,
		clock:      clock,
	}
}

// Admissions exposes the admission controller for readiness introspection.
func (g *Gateway) Admissions() *admission.Controller {
	return g.admissions
}

// Handle is the echo handler for the /ws route. It blocks for the lifetime of
// the accepted session.
func (g *Gateway) Handle(c echo.Context) error {
	r := c.Request()

	// A missing origin header is a mismatch too.
	if origin := r.Header.Get("Origin"); origin != g.cfg.AllowedOrigin {
		metrics.ConnectionsRejectedTotal.WithLabelValues("origin").Inc()
		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return c.NoContent(http.StatusUnauthorized)
	}

	clientIP := identity.ClientIP(r.Header, r.RemoteAddr)

	if !g.attempts.Allow(clientIP) {
		metrics.ConnectionsRejectedTotal.WithLabelValues("rate").Inc()
		slog.Debug("connection attempt rate limited")
		return c.NoContent(http.StatusTooManyRequests)
	}

	clientHash := identity.Hash(g.cfg.HashSalt, clientIP)

	// Rejecting over-limit clients before the upgrade saves the handshake.
	slot, ok := g.admissions.Admit(clientHash)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues("per_ip_limit").Inc()
		slog.Debug("connection ceiling reached", "identity", clientHash)
		return c.NoContent(http.StatusTooManyRequests)
	}

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slot.Release()
		slog.Debug("websocket upgrade failed", "error", err)
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	// Sessions deliberately outlive the request context: server shutdown
	// stops the accept path but lets live sessions run to their natural end.
	sess := session.New(conn, g.tally, g.hub, slot, g.clock, g.cfg.Session)
	sess.Run(context.Background())
	return nil
}
