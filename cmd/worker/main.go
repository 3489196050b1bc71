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
	"github.com/roadmapai/backend/internal/progress"
	"github.com/roadmapai/backend/internal/worker"
)

const defaultStageDelay = time.Second

func main() {
	telemetry.InitLogger("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	shutdown, err := telemetry.SetupTracer(ctx, "worker", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Environment)
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

	bus, err := eventbus.NewRedisBus(cfg.Redis.Addr)
	if err != nil {
		slog.Error("failed to connect event bus", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	prog, err := progress.NewRedisStore(cfg.Redis.Addr)
	if err != nil {
		slog.Error("failed to connect progress store", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}

	stageDelay := defaultStageDelay
	if v := os.Getenv("WORKER_STAGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			stageDelay = d
		}
	}

	gen := worker.NewGenerator(bus, prog, stageDelay)
	slog.Info("worker running", "group", worker.Group, "stage_delay", stageDelay)
	if err := worker.NewRunner(bus, gen).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
