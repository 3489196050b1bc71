package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roadmapai/backend/internal/config"
	"github.com/roadmapai/backend/internal/eventbus"
	"github.com/roadmapai/backend/internal/pkg/telemetry"
	"github.com/roadmapai/backend/internal/reconciler"
	"github.com/roadmapai/backend/internal/store/sqlite"
)

func main() {
	telemetry.InitLogger("reconciler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	shutdown, err := telemetry.SetupTracer(ctx, "reconciler", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Environment)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.SQLite.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	bus, err := eventbus.NewRedisBus(cfg.Redis.Addr)
	if err != nil {
		slog.Error("failed to connect event bus", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	slog.Info("reconciler running", "group", reconciler.Group)
	if err := reconciler.New(bus, store).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("reconciler stopped", "error", err)
		os.Exit(1)
	}
}
