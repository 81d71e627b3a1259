package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/nodegraph/internal/api"
	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/logging"
	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
	"github.com/gyaneshwarpardhi/nodegraph/internal/service"
	"github.com/gyaneshwarpardhi/nodegraph/internal/traverse"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	scenePath := flag.String("scene", "configs/scene.yaml", "Path to scene YAML document")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger, err := logging.New(*logLevel, *logFormat, os.Stdout)
	if err != nil {
		slog.Error("invalid logging flags", "err", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	// ── Load scene ───────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*scenePath, logger)
	if err != nil {
		slog.Error("failed to load scene", "err", err)
		os.Exit(1)
	}
	sc := loader.Scene()
	if err := config.Validate(sc); err != nil {
		slog.Error("scene validation failed", "err", err)
		os.Exit(1)
	}
	defaults, err := traverse.SettingsFromConfig(sc.Traversal)
	if err != nil {
		slog.Error("invalid traversal defaults", "err", err)
		os.Exit(1)
	}

	// ── Build initial graph ──────────────────────────────────────────────────
	g, err := nodegraph.Build(sc)
	if err != nil {
		slog.Error("failed to build graph", "err", err)
		os.Exit(1)
	}
	for name, err := range g.ActivationErrors() {
		slog.Warn("activation rule failed, node inactive", "node", name, "err", err)
	}
	slog.Info("graph built", "version", sc.Version, "nodes", g.NodeCount(), "variables", len(g.Variables()))

	// ── Query service ────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := service.New(ctx, g, defaults, sc.Service, logger)

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(next *config.Scene) {
		if err := svc.Apply(next); err != nil {
			slog.Warn("hot-reload skipped", "err", err)
		}
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("scene watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(svc, loader, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr, "scene", loader.Path())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	svc.Shutdown()
	cancel()
	slog.Info("goodbye")
}
