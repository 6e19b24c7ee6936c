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
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/aldalur/plantmap/internal/adapters/http"
	natsadapter "github.com/aldalur/plantmap/internal/adapters/nats"
	"github.com/aldalur/plantmap/internal/adapters/postgres"
	"github.com/aldalur/plantmap/internal/adapters/restdetail"
	"github.com/aldalur/plantmap/internal/adapters/valkey"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/core/usecases"
	"github.com/aldalur/plantmap/internal/pkg/config"
	"github.com/aldalur/plantmap/internal/pkg/crs"
	"github.com/aldalur/plantmap/internal/pkg/logging"
	"github.com/aldalur/plantmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("plantmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	var cache *valkey.Cache
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cache = c
		defer cache.Close()
	}
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}

	// NATS
	var pubSvc ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		pubSvc = pub
		defer pub.Close()
	}

	// Raw NATS connection for the map-session refresh relay
	natsConn, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		slog.Warn("nats session conn unavailable", "error", err)
	}

	// Temporal (optional; imports disabled without it)
	var temporal temporalclient.Client
	if cfg.Temporal.HostPort != "" {
		temporal, err = temporalclient.Dial(temporalclient.Options{
			HostPort: cfg.Temporal.HostPort,
		})
		if err != nil {
			slog.Warn("temporal unavailable, imports disabled", "error", err)
		} else {
			defer temporal.Close()
		}
	}

	// CRS registry from configuration
	registry := crs.NewRegistry(cfg.CRS)

	// Repos
	treeRepo := postgres.NewTreeRepo(db)
	plotRepo := postgres.NewPlotRepo(db)

	// Use cases
	treeSvc := usecases.NewTreeService(treeRepo, cacheSvc, pubSvc, registry)
	plotSvc := usecases.NewPlotService(plotRepo, cacheSvc, pubSvc)
	detailSvc := usecases.NewDetailService(restdetail.New(cfg.Detail.BaseURL), cacheSvc)

	// Bulk refreshes invalidate the detail cache on every instance.
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("detail invalidation subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		var events ports.EventSubscriber = sub
		err := events.SubscribeEntityRefresh(ctx, func(context.Context) error {
			detailSvc.InvalidateAll()
			return nil
		})
		if err != nil {
			slog.Warn("detail invalidation subscribe failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Trees:           treeSvc,
		Plots:           plotSvc,
		Details:         detailSvc,
		Registry:        registry,
		NATS:            natsConn,
		DB:              db,
		Cache:           cache,
		Temporal:        temporal,
		ImportTaskQueue: cfg.Temporal.TaskQueue,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    8 * 1024 * 1024, // bulk imports carry whole surveys
		AppName:      "PlantMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
