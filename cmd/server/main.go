package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/colorpulse/internal/config"
	"github.com/pscheid92/colorpulse/internal/gateway"
	"github.com/pscheid92/colorpulse/internal/hub"
	"github.com/pscheid92/colorpulse/internal/logging"
	"github.com/pscheid92/colorpulse/internal/server"
	"github.com/pscheid92/colorpulse/internal/session"
	"github.com/pscheid92/colorpulse/internal/snapshot"
	"github.com/pscheid92/colorpulse/internal/tally"
	"github.com/pscheid92/colorpulse/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStore picks the snapshot backend: Redis when configured, a local JSON
// file otherwise. Both are wrapped in the circuit breaker.
func setupStore(ctx context.Context, cfg *config.Config) snapshot.Store {
	if cfg.RedisURL == "" {
		slog.Info("Using file snapshot store", "path", cfg.StatePath)
		return snapshot.NewBreakerStore(snapshot.NewFileStore(cfg.StatePath))
	}

	rdb, err := snapshot.Connect(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Using Redis snapshot store")
	return snapshot.NewBreakerStore(snapshot.NewRedisStore(rdb))
}

func restoreState(ctx context.Context, store snapshot.Store, tl *tally.Tally) {
	snap, ok, err := store.Load(ctx)
	if err != nil {
		slog.Warn("Failed to restore saved state, starting from zero", "error", err)
		return
	}
	if !ok {
		slog.Info("No saved state found, starting from zero")
		return
	}
	tl.Restore(snap)
	slog.Info("Restored saved state", "total_votes", snap.Total, "total_users", snap.TotalUsers)
}

func runGracefulShutdown(srv *server.Server, stopPersister func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Stop the accept path first; live sessions run to their natural end.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Cancelling the persister triggers its final save.
		stopPersister()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", build.Version,
		"commit", build.Commit,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store := setupStore(ctx, cfg)

	voteTally := tally.New()
	restoreState(ctx, store, voteTally)
	cancel()

	broadcastHub := hub.New(cfg.BroadcastBuffer)

	gw := gateway.New(gateway.Config{
		AllowedOrigin:        cfg.AllowedOrigin,
		HashSalt:             cfg.HashSalt,
		MaxConnectionsPerIP:  cfg.MaxConnectionsPerIP,
		ConnectionsPerSecond: cfg.ConnectionsPerSecond,
		ConnectionBurst:      cfg.ConnectionBurst,
		Session: session.Config{
			IdleTimeout:        cfg.IdleTimeout,
			MinMessageInterval: cfg.MessageMinInterval,
		},
	}, voteTally, broadcastHub, clock)

	srv := server.NewServer(cfg, gw, store)

	persister := snapshot.NewPersister(store, voteTally, clock, cfg.SnapshotInterval)
	persisterCtx, stopPersister := context.WithCancel(context.Background())
	var persisterDone sync.WaitGroup
	persisterDone.Add(1)
	go func() {
		defer persisterDone.Done()
		persister.Run(persisterCtx)
	}()

	done := runGracefulShutdown(srv, stopPersister)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	persisterDone.Wait()
}
