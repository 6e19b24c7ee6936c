package ports

import (
	"context"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	// PublishEntityRefresh announces that the tree list changed in bulk;
	// consumers must drop cached per-tree detail and re-sync features.
	PublishEntityRefresh(ctx context.Context) error
	PublishTreePlanted(ctx context.Context, tree *domain.Tree) error
	PublishPlotChanged(ctx context.Context, plotID int64) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeEntityRefresh(ctx context.Context, handler func(ctx context.Context) error) error
	SubscribeTreePlanted(ctx context.Context, handler func(ctx context.Context, tree *domain.Tree) error) error
}

// CacheService provides read-through caching and the offline copy used by
// the detail fallback chain.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// DetailSource fetches auxiliary per-tree detail. The two lookups are
// independently fallible; a caller may assemble a partial record when only
// one succeeds.
type DetailSource interface {
	FetchTasks(ctx context.Context, treeID int64) ([]domain.Task, error)
	FetchTimeline(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error)
}
