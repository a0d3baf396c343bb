// Kestrel - Campus security risk assessment and patrol guidance.
// Copyright (c) 2025 campus-safety
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campus-safety/kestrel/internal/api"
	"github.com/campus-safety/kestrel/internal/bundle"
	"github.com/campus-safety/kestrel/internal/bus"
	"github.com/campus-safety/kestrel/internal/cache"
	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/inference"
	"github.com/campus-safety/kestrel/internal/repository"
	"github.com/campus-safety/kestrel/internal/rules"
	"github.com/campus-safety/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if path := os.Getenv("KESTREL_BUNDLE"); path != "" {
		cfg.Bundle.Path = path
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"bundle", cfg.Bundle.Path,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize recommendation triggers and catalogue
	triggers, err := rules.NewTriggerSet()
	if err != nil {
		slog.Error("failed to compile recommendation triggers", "error", err)
		os.Exit(1)
	}
	catalogue := rules.DefaultCatalogue()
	slog.Info("recommendation catalogue initialized")

	// Initialize inference engine and load the trained bundle if present
	engine := inference.NewEngine(catalogue, triggers)
	store := bundle.NewStore(cfg.Bundle.Path)
	if err := engine.LoadFrom(store); err != nil {
		if errors.Is(err, domain.ErrBundleMissing) {
			slog.Warn("no model bundle found; assessments unavailable until training completes",
				"path", cfg.Bundle.Path,
			)
		} else {
			slog.Error("failed to load model bundle", "path", cfg.Bundle.Path, "error", err)
			os.Exit(1)
		}
	} else {
		b := engine.Bundle()
		slog.Info("model bundle loaded",
			"path", cfg.Bundle.Path,
			"trained_at", b.TrainedAt,
			"features", len(b.FeatureOrder),
		)
	}

	// Initialize async worker for incident persistence
	asyncWorker := worker.NewWorker(busImpl, repo)

	var tenantIDs []string
	if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
		for _, id := range strings.Split(envTenants, ",") {
			if id = strings.TrimSpace(id); id != "" {
				tenantIDs = append(tenantIDs, id)
			}
		}
	}

	if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
		slog.Error("failed to start async worker", "error", err)
	} else {
		slog.Info("async worker started", "tenant_count", len(tenantIDs))
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, store, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Campus Security Risk Assessment       ║")
	fmt.Println("  ║      Know the risk before the shift.      ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /v1/assess            - Assess a patrol context")
	fmt.Println("    GET  /v1/assessments/{id}  - Get assessment by ID")
	fmt.Println("    POST /v1/incidents         - Ingest incident batch")
	fmt.Println("    GET  /v1/findings          - Latest derived findings")
	fmt.Println("    GET  /v1/model/metrics     - Model evaluation metrics")
	fmt.Println("    POST /v1/bundle/reload     - Hot-reload model bundle")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
