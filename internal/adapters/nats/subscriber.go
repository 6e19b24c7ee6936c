package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeEntityRefresh delivers bulk-refresh notifications. Each API
// instance consumes independently so every one invalidates its caches.
func (s *Subscriber) SubscribeEntityRefresh(ctx context.Context, handler func(ctx context.Context) error) error {
	sub, err := s.js.Subscribe("plantmap.trees.refresh", func(msg *nats.Msg) {
		if err := handler(ctx); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeTreePlanted delivers single-tree plant events.
func (s *Subscriber) SubscribeTreePlanted(ctx context.Context, handler func(ctx context.Context, tree *domain.Tree) error) error {
	sub, err := s.js.Subscribe("plantmap.trees.planted.>", func(msg *nats.Msg) {
		var tree domain.Tree
		if err := json.Unmarshal(msg.Data, &tree); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &tree); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
