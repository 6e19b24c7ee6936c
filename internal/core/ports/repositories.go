package ports

import (
	"context"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// TreeRepository persists planted-tree markers.
type TreeRepository interface {
	Create(ctx context.Context, tree *domain.Tree) (int64, error)
	Update(ctx context.Context, tree *domain.Tree) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Tree, error)
	List(ctx context.Context) ([]domain.Tree, error)
	ListByPlot(ctx context.Context, plotID int64) ([]domain.Tree, error)
	UpsertBatch(ctx context.Context, trees []domain.Tree) error
}

// PlotRepository persists survey plots. Tree containment is resolved
// spatially by the store.
type PlotRepository interface {
	Create(ctx context.Context, plot *domain.Plot) (int64, error)
	Update(ctx context.Context, plot *domain.Plot) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Plot, error)
	List(ctx context.Context) ([]domain.Plot, error)
}

// TaskRepository persists maintenance tasks and visit timelines.
type TaskRepository interface {
	ListByTree(ctx context.Context, treeID int64) ([]domain.Task, error)
	TimelineByTree(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error)
	Create(ctx context.Context, task *domain.Task) (int64, error)
	SetStatus(ctx context.Context, id int64, status string) error
}
