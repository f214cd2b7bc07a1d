package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jaylordlagud2022/affiliate-portal/internal/config"
	"github.com/jaylordlagud2022/affiliate-portal/internal/hub"
	internalhttp "github.com/jaylordlagud2022/affiliate-portal/internal/http"
	"github.com/jaylordlagud2022/affiliate-portal/internal/logging"
	"github.com/jaylordlagud2022/affiliate-portal/internal/service"
	"github.com/jaylordlagud2022/affiliate-portal/internal/store"
	"github.com/jaylordlagud2022/affiliate-portal/internal/supervisor"
	"github.com/jaylordlagud2022/affiliate-portal/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	logging.Info().
		Str("listen_addr", cfg.ListenAddr).
		Str("internal_addr", cfg.InternalAddr).
		Msg("starting chat relay")

	// Relay state lives for the lifetime of the process.
	conversations := store.NewMemoryStore()
	defer conversations.Close()
	svc := service.New(hub.NewHub(cfg.SendBufferSize), conversations)

	// WebSocket listener
	wsEcho := echo.New()
	wsEcho.HideBanner = true
	wsEcho.HidePort = true
	wsEcho.Use(middleware.Recover())
	ws.NewServer(cfg, svc).RegisterRoutes(wsEcho)

	tree := supervisor.NewTree(logging.With("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	tree.AddTransport(supervisor.NewServerService("websocket", cfg.ListenAddr, wsEcho, cfg.ShutdownTimeout))
	if cfg.InternalAddr != "" {
		tree.AddTransport(supervisor.NewServerService("internal-http", cfg.InternalAddr, internalhttp.NewServer(svc), cfg.ShutdownTimeout))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("relay stopped with error")
		os.Exit(1)
	}

	logging.Info().Msg("relay stopped")
}
