// Package server wires the HTTP surface: the WebSocket route, health probes,
// and the Prometheus endpoint.
package server

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/colorpulse/internal/config"
	"github.com/pscheid92/colorpulse/internal/gateway"
	"github.com/pscheid92/colorpulse/internal/snapshot"
)

type Server struct {
	echo    *echo.Echo
	config  *config.Config
	gateway *gateway.Gateway
	store   snapshot.Store
}

func NewServer(cfg *config.Config, gw *gateway.Gateway, store snapshot.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:    e,
		config:  cfg,
		gateway: gw,
		store:   store,
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

// Shutdown stops the accept path. Hijacked WebSocket sessions are not severed;
// they terminate on their own timeout, disconnect, or error.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
