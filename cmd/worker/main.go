package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/aldalur/plantmap/internal/adapters/nats"
	"github.com/aldalur/plantmap/internal/adapters/postgres"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/core/usecases"
	"github.com/aldalur/plantmap/internal/pkg/config"
	"github.com/aldalur/plantmap/internal/pkg/crs"
	"github.com/aldalur/plantmap/internal/pkg/logging"
	"github.com/aldalur/plantmap/internal/workflows"
)

func main() {
	cfg, err := config.Load("plantmap-worker")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	registry := crs.NewRegistry(cfg.CRS)

	var pub ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, refresh announcements disabled", "error", err)
	} else {
		defer p.Close()
		pub = p
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.BulkImportWorkflow)
	w.RegisterActivity(&workflows.ImportActivities{
		// The tree service runs without a publisher here: the workflow
		// announces the refresh itself once the whole batch lands.
		Trees:     usecases.NewTreeService(postgres.NewTreeRepo(db), nil, nil, registry),
		Registry:  registry,
		Publisher: pub,
	})

	slog.Info("import worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
