package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/storemap/internal/adapters/http"
	natsadapter "github.com/samirrijal/storemap/internal/adapters/nats"
	"github.com/samirrijal/storemap/internal/bootstrap"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/config"
	"github.com/samirrijal/storemap/internal/pkg/logging"
	"github.com/samirrijal/storemap/internal/pkg/metrics"
	"github.com/samirrijal/storemap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("storemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Repository and spatial index
	storage, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer storage.Close()

	// Idempotency cache and rate counter
	gateway, err := bootstrap.OpenGateway(cfg)
	if err != nil {
		log.Fatalf("gateway backends: %v", err)
	}
	defer gateway.Close()

	// NATS
	var events ports.EventPublisher
	var eventSource http.StoreEventSource
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, store events disabled", "error", err)
		} else {
			defer pub.Close()
			events = pub
			eventSource = natsadapter.NewSubscriber(pub.Conn())
		}
	}

	directory := bootstrap.NewDirectory(cfg, storage, events)

	if storage.NeedsWarmup(cfg) {
		n, err := usecases.NewReindexService(storage.Stores, storage.Index).ReindexAll(ctx, cfg.Temporal.BatchSize)
		if err != nil {
			log.Fatalf("index warmup: %v", err)
		}
		slog.Info("spatial index warmed up", "stores", n)
	}

	readiness := readinessChecks(storage, gateway, events)
	if storage.DB != nil {
		go reportPoolStats(ctx, storage)
	}

	deps := &http.Dependencies{
		Directory:   directory,
		Idempotency: bootstrap.NewIdempotency(cfg, gateway),
		Admission:   bootstrap.NewAdmission(cfg, gateway),
		Events:      eventSource,
		Readiness:   readiness,
		Defaults: http.QueryDefaults{
			RadiusKm:    cfg.Limits.DefaultRadiusKm,
			NearLimit:   cfg.Limits.DefaultNearLimit,
			WithinLimit: cfg.Limits.DefaultWithinLimit,
		},
		APIKeys:        cfg.Auth.APIKeys,
		AllowOrigins:   cfg.CORS.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		HandlerTimeout: cfg.Server.HandlerTimeout,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		// The gateway answers oversized bodies itself; leave headroom here.
		BodyLimit:    2 * cfg.Server.BodyLimit,
		AppName:      "storemap API",
		ErrorHandler: http.ErrorHandler,
	})

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func readinessChecks(s *bootstrap.Storage, g *bootstrap.Gateway, events ports.EventPublisher) []http.ReadinessCheck {
	var checks []http.ReadinessCheck
	if s.DB != nil {
		checks = append(checks, http.ReadinessCheck{Name: "database", Pinger: s.DB})
	}
	if p, ok := s.Index.(ports.Pinger); ok {
		checks = append(checks, http.ReadinessCheck{Name: "index", Pinger: p})
	}
	if g.Valkey != nil {
		checks = append(checks, http.ReadinessCheck{Name: "valkey", Pinger: g.Valkey})
	}
	if p, ok := events.(ports.Pinger); ok {
		checks = append(checks, http.ReadinessCheck{Name: "nats", Pinger: p})
	}
	return checks
}

func reportPoolStats(ctx context.Context, s *bootstrap.Storage) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stat := s.DB.Stat(); stat != nil {
				metrics.UpdateDBPoolMetrics(stat)
			}
		}
	}
}
