package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roadmapai/backend/internal/auth"
	"github.com/roadmapai/backend/internal/config"
	"github.com/roadmapai/backend/internal/eventbus"
	"github.com/roadmapai/backend/internal/httpx"
	"github.com/roadmapai/backend/internal/pkg/telemetry"
	"github.com/roadmapai/backend/internal/progress"
	"github.com/roadmapai/backend/internal/store/sqlite"
)

func main() {
	telemetry.InitLogger("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	shutdown, err := telemetry.SetupTracer(ctx, "api", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Environment)
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

	prog, err := progress.NewRedisStore(cfg.Redis.Addr)
	if err != nil {
		slog.Error("failed to connect progress store", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}

	authSvc := auth.NewService(store, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	router := httpx.NewRouter(
		httpx.NewAuthHandler(authSvc),
		httpx.NewPathHandler(bus, prog, store),
		authSvc,
	)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
	}()

	slog.Info("api running", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
