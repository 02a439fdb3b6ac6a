// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/devpulsehq/devpulse/cmd/devpulse/config"
	"github.com/devpulsehq/devpulse/pkg/ux"
	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/server"
	"github.com/devpulsehq/devpulse/services/insight/store"
	"github.com/devpulsehq/devpulse/services/insight/teams"
	"github.com/devpulsehq/devpulse/services/insight/telemetry"
)

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Global

	// Set Gin mode
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	telemetryCfg := telemetryConfig(cfg)
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	db, st := openStore(cfg)

	// The team cache reads rosters straight from the store and rebuilds
	// lazily after Invalidate.
	teamCache := teams.NewCache(func(ctx context.Context) ([]*record.Team, error) {
		return store.Teams(ctx, st, nil)
	}, slog.Default())

	meter := otel.Meter("devpulse/server")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	handlers := server.NewHandlers(st, teamCache, slog.Default()).
		WithMetrics(metrics).
		WithTracing(telemetryCfg.TraceExporter != "none")

	if _, err := metrics.RegisterSeedActive(meter, handlers.SeedActive); err != nil {
		slog.Warn("Seed gauge registration failed", slog.String("error", err.Error()))
	}

	// The limiter is shared with the config watcher so rate changes
	// apply without a restart.
	limiter := rate.NewLimiter(rate.Limit(cfg.Server.GetRateLimit()), cfg.Server.GetRateBurst())

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	if serveDebug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("devpulse"))
	router.Use(telemetry.MetricsMiddleware(metrics))
	router.Use(server.RateLimitUsing(limiter))

	v1 := router.Group("/v1")
	server.RegisterRoutes(v1, handlers)

	if telemetryCfg.MetricExporter == "prometheus" {
		router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	}

	watcher := watchConfig(ctx, limiter)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.GetAddr()
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down devpulse server")
		if watcher != nil {
			watcher.Stop()
		}
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
		if err := db.Close(); err != nil {
			slog.Warn("Store close failed", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	// Print startup banner
	printBanner(addr)

	// Start server
	slog.Info("Starting devpulse server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// telemetryConfig maps the YAML telemetry section onto the telemetry
// package config, keeping its environment-variable defaults for any
// field the file leaves empty.
func telemetryConfig(cfg *config.DevpulseConfig) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = server.ServiceVersion
	if cfg.Telemetry.Environment != "" {
		tc.Environment = cfg.Telemetry.Environment
	}
	if cfg.Telemetry.TraceExporter != "" {
		tc.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if cfg.Telemetry.MetricExporter != "" {
		tc.MetricExporter = cfg.Telemetry.MetricExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	return tc
}

// watchConfig starts the config file watcher and applies rate-limit
// changes to the live limiter. Returns nil when watching is
// unavailable; the server then runs with its startup settings.
func watchConfig(ctx context.Context, limiter *rate.Limiter) *config.Watcher {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			slog.Warn("Config watcher disabled", slog.String("error", err.Error()))
			return nil
		}
	}

	watcher, err := config.NewWatcher(path, func(next *config.DevpulseConfig) {
		limiter.SetLimit(rate.Limit(next.Server.GetRateLimit()))
		limiter.SetBurst(next.Server.GetRateBurst())
		slog.Info("Applied reloaded rate limit",
			slog.Float64("rps", next.Server.GetRateLimit()),
			slog.Int("burst", next.Server.GetRateBurst()))
	}, slog.Default())
	if err != nil {
		slog.Warn("Config watcher disabled", slog.String("error", err.Error()))
		return nil
	}

	go watcher.Start(ctx)
	return watcher
}

func printBanner(addr string) {
	p := ux.GetPersonality()
	if p.Level == ux.PersonalityMachine || p.Level == ux.PersonalityMinimal {
		return
	}

	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                          DEVPULSE SERVER                          ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Self-hosted engineering metrics over your own data.              ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl %s/v1/devpulse/health                  │  ║
║  │                                                             │  ║
║  │ # Seed a synthetic organization                             │  ║
║  │ curl -X POST %s/v1/devpulse/seed            │  ║
║  │                                                             │  ║
║  │ # 30-day pull-request dashboard                             │  ║
║  │ curl %s/v1/devpulse/reports/pulls | jq      │  ║
║  │                                                             │  ║
║  │ # Deployment frequency (DORA)                               │  ║
║  │ curl %s/v1/devpulse/dora/frequency | jq     │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Trend: /trend                                                ║
║  ├── DORA (3): /dora/frequency, /dora/leadtime, /dora/throughput  ║
║  ├── Reports (4): pulls, issues, commits, runners                 ║
║  ├── Teams: /teams                                                ║
║  ├── Seed (3): POST /seed, /seed/status, /seed/progress (ws)      ║
║  └── Ops: /health, /ready, /metrics                               ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, baseURL, baseURL, baseURL, baseURL)
}
