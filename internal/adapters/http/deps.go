package http

import (
	"github.com/nats-io/nats.go"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/aldalur/plantmap/internal/adapters/postgres"
	"github.com/aldalur/plantmap/internal/adapters/valkey"
	"github.com/aldalur/plantmap/internal/core/usecases"
	"github.com/aldalur/plantmap/internal/pkg/crs"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Trees    *usecases.TreeService
	Plots    *usecases.PlotService
	Details  *usecases.DetailService
	Registry *crs.Registry

	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache

	// Temporal drives the bulk-import workflow; nil disables imports.
	Temporal        temporalclient.Client
	ImportTaskQueue string
}
