package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/pkg/crs"
	"github.com/aldalur/plantmap/internal/pkg/metrics"
)

const treeListCacheKey = "trees:all"

// TreeService handles tree-marker business logic. Incoming coordinates are
// converted to the canonical geographic system on the way in; statuses are
// normalized so the rest of the system only sees canonical keys.
type TreeService struct {
	trees     ports.TreeRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	registry  *crs.Registry
}

// NewTreeService creates a new TreeService.
func NewTreeService(trees ports.TreeRepository, cache ports.CacheService, publisher ports.EventPublisher, registry *crs.Registry) *TreeService {
	return &TreeService{trees: trees, cache: cache, publisher: publisher, registry: registry}
}

// Plant stores a new tree marker and announces it.
func (s *TreeService) Plant(ctx context.Context, tree *domain.Tree) (int64, error) {
	if err := s.canonicalize(tree); err != nil {
		return 0, err
	}

	id, err := s.trees.Create(ctx, tree)
	if err != nil {
		return 0, fmt.Errorf("create tree: %w", err)
	}
	tree.ID = id

	s.dropListCache(ctx)
	if s.publisher != nil {
		if err := s.publisher.PublishTreePlanted(ctx, tree); err != nil {
			slog.Warn("publish tree planted failed", "tree_id", id, "error", err)
		}
	}
	return id, nil
}

// Move repositions an existing tree.
func (s *TreeService) Move(ctx context.Context, id int64, p domain.Position) error {
	tree, err := s.trees.GetByID(ctx, id)
	if err != nil {
		return err
	}
	tree.Position = p
	if err := s.canonicalize(tree); err != nil {
		return err
	}
	if err := s.trees.Update(ctx, tree); err != nil {
		return fmt.Errorf("update tree: %w", err)
	}
	s.dropListCache(ctx)
	return nil
}

// SetStatus updates a tree's status, accepting known aliases.
func (s *TreeService) SetStatus(ctx context.Context, id int64, raw string) error {
	status := domain.TreeStatus(domain.NormalizeStatus(raw))
	if !status.Valid() {
		return fmt.Errorf("unknown tree status %q", raw)
	}
	tree, err := s.trees.GetByID(ctx, id)
	if err != nil {
		return err
	}
	tree.Status = status
	if err := s.trees.Update(ctx, tree); err != nil {
		return fmt.Errorf("update tree: %w", err)
	}
	s.dropListCache(ctx)
	return nil
}

// Remove deletes a tree marker.
func (s *TreeService) Remove(ctx context.Context, id int64) error {
	if err := s.trees.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}
	s.dropListCache(ctx)
	return nil
}

// GetByID returns a single tree.
func (s *TreeService) GetByID(ctx context.Context, id int64) (*domain.Tree, error) {
	return s.trees.GetByID(ctx, id)
}

// List returns all trees, read-through cached for a minute.
func (s *TreeService) List(ctx context.Context) ([]domain.Tree, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, treeListCacheKey); err == nil {
			var trees []domain.Tree
			if err := json.Unmarshal(data, &trees); err == nil {
				return trees, nil
			}
		}
	}

	trees, err := s.trees.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(trees); err == nil {
			_ = s.cache.Set(ctx, treeListCacheKey, data, 60)
		}
	}
	return trees, nil
}

// ListByPlot returns the trees inside one plot.
func (s *TreeService) ListByPlot(ctx context.Context, plotID int64) ([]domain.Tree, error) {
	return s.trees.ListByPlot(ctx, plotID)
}

// BulkUpsert stores a batch of imported trees and announces a full
// refresh. Unconvertible or non-finite rows are skipped, not fatal.
func (s *TreeService) BulkUpsert(ctx context.Context, trees []domain.Tree) (int, error) {
	kept := make([]domain.Tree, 0, len(trees))
	for i := range trees {
		tree := trees[i]
		if err := s.canonicalize(&tree); err != nil {
			slog.Warn("skipping unimportable tree", "row", i, "error", err)
			metrics.FeaturesDropped.WithLabelValues("import").Inc()
			continue
		}
		kept = append(kept, tree)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	if err := s.trees.UpsertBatch(ctx, kept); err != nil {
		return 0, fmt.Errorf("upsert trees: %w", err)
	}
	s.dropListCache(ctx)
	if s.publisher != nil {
		if err := s.publisher.PublishEntityRefresh(ctx); err != nil {
			slog.Warn("publish entity refresh failed", "error", err)
		}
	}
	return len(kept), nil
}

// canonicalize converts the position to the canonical system and
// normalizes the status in place.
func (s *TreeService) canonicalize(tree *domain.Tree) error {
	if !tree.Position.IsFinite() {
		return fmt.Errorf("tree position is not finite")
	}
	if s.registry != nil {
		tree.Position, _ = s.registry.ToCanonical(tree.Position, tree.Position.System)
	}
	status := domain.TreeStatus(domain.NormalizeStatus(string(tree.Status)))
	if !status.Valid() {
		return fmt.Errorf("unknown tree status %q", tree.Status)
	}
	tree.Status = status
	return nil
}

func (s *TreeService) dropListCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, treeListCacheKey)
	}
}
