package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the plantmap streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "PLANTMAP_TREES",
			Subjects:  []string{"plantmap.trees.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PLANTMAP_PLOTS",
			Subjects:  []string{"plantmap.plots.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishEntityRefresh announces a bulk tree-list change. Consumers drop
// their per-tree detail caches and re-sync features.
func (p *Publisher) PublishEntityRefresh(ctx context.Context) error {
	_, err := p.js.Publish("plantmap.trees.refresh", nil)
	return err
}

// PublishTreePlanted announces a single new tree.
func (p *Publisher) PublishTreePlanted(ctx context.Context, tree *domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("plantmap.trees.planted."+strconv.FormatInt(tree.ID, 10), data)
	return err
}

// PublishPlotChanged announces a plot create, update or delete.
func (p *Publisher) PublishPlotChanged(ctx context.Context, plotID int64) error {
	_, err := p.js.Publish("plantmap.plots.changed", []byte(strconv.FormatInt(plotID, 10)))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
