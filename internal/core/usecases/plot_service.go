package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/pkg/geometry"
)

const plotListCacheKey = "plots:all"

// PlotService handles survey-plot business logic. Boundaries are closed
// and validated before they reach the store, so downstream code can rely
// on well-formed rings.
type PlotService struct {
	plots     ports.PlotRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
}

// NewPlotService creates a new PlotService.
func NewPlotService(plots ports.PlotRepository, cache ports.CacheService, publisher ports.EventPublisher) *PlotService {
	return &PlotService{plots: plots, cache: cache, publisher: publisher}
}

// Create stores a new plot. Rings with fewer than three distinct vertices
// are rejected with geometry.ErrInsufficientVertices.
func (s *PlotService) Create(ctx context.Context, plot *domain.Plot) (int64, error) {
	if err := s.prepareBoundary(plot); err != nil {
		return 0, err
	}

	id, err := s.plots.Create(ctx, plot)
	if err != nil {
		return 0, fmt.Errorf("create plot: %w", err)
	}
	plot.ID = id

	s.dropListCache(ctx)
	s.announce(ctx, id)
	return id, nil
}

// Update replaces a plot's boundary and metadata.
func (s *PlotService) Update(ctx context.Context, plot *domain.Plot) error {
	if err := s.prepareBoundary(plot); err != nil {
		return err
	}
	if err := s.plots.Update(ctx, plot); err != nil {
		return fmt.Errorf("update plot: %w", err)
	}
	s.dropListCache(ctx)
	s.announce(ctx, plot.ID)
	return nil
}

// Remove deletes a plot. Trees inside it lose their plot assignment at
// the store level.
func (s *PlotService) Remove(ctx context.Context, id int64) error {
	if err := s.plots.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete plot: %w", err)
	}
	s.dropListCache(ctx)
	s.announce(ctx, id)
	return nil
}

// GetByID returns a single plot.
func (s *PlotService) GetByID(ctx context.Context, id int64) (*domain.Plot, error) {
	return s.plots.GetByID(ctx, id)
}

// List returns all plots, read-through cached.
func (s *PlotService) List(ctx context.Context) ([]domain.Plot, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, plotListCacheKey); err == nil {
			var plots []domain.Plot
			if err := json.Unmarshal(data, &plots); err == nil {
				return plots, nil
			}
		}
	}

	plots, err := s.plots.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(plots); err == nil {
			_ = s.cache.Set(ctx, plotListCacheKey, data, 120)
		}
	}
	return plots, nil
}

// StationLabels returns the first n survey-station labels, A through Z
// then AA, AB and so on, for numbering plot corners on printed sheets.
func (s *PlotService) StationLabels(n int) []string {
	if n <= 0 {
		return nil
	}
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = geometry.StationLabel(i)
	}
	return labels
}

func (s *PlotService) prepareBoundary(plot *domain.Plot) error {
	if len(plot.Boundary) == 0 {
		return fmt.Errorf("plot boundary: %w", geometry.ErrInsufficientVertices)
	}
	closed := make([]domain.Ring, len(plot.Boundary))
	for i, ring := range plot.Boundary {
		if err := geometry.Validate(ring); err != nil {
			return fmt.Errorf("plot boundary ring %d: %w", i, err)
		}
		closed[i] = geometry.CloseRing(ring)
	}
	plot.Boundary = closed
	return nil
}

func (s *PlotService) announce(ctx context.Context, id int64) {
	if s.publisher != nil {
		if err := s.publisher.PublishPlotChanged(ctx, id); err != nil {
			slog.Warn("publish plot changed failed", "plot_id", id, "error", err)
		}
	}
}

func (s *PlotService) dropListCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, plotListCacheKey)
	}
}
