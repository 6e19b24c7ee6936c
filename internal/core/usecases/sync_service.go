package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/pkg/metrics"
)

// Source ids under which the synchronizer publishes feature collections.
const (
	SourceTrees = "plantmap-trees"
	SourcePlots = "plantmap-plots"
)

// FeatureSyncService projects the current tree and plot lists onto the
// rendering surface. Pushes are full-replacement and idempotent: a push is
// skipped when the content is unchanged, and dropped (not queued) when a
// newer update superseded it before the push went out.
type FeatureSyncService struct {
	surface ports.RenderSurface

	mu       sync.Mutex
	gen      uint64
	treeHash [sha256.Size]byte
	plotHash [sha256.Size]byte
	havePrev bool

	// pushMu serializes surface writes. The generation check runs under
	// it, so a superseded push can never land after its successor.
	pushMu sync.Mutex
}

// NewFeatureSyncService creates a synchronizer bound to one surface.
func NewFeatureSyncService(surface ports.RenderSurface) *FeatureSyncService {
	return &FeatureSyncService{surface: surface}
}

// Sync converts the entity lists to feature collections and pushes whatever
// changed. One malformed entity never blanks the map: bad items are dropped
// individually and the rest of the batch goes through.
func (s *FeatureSyncService) Sync(ctx context.Context, trees []domain.Tree, plots []domain.Plot) error {
	treeFC := TreeFeatures(trees)
	plotFC := PlotFeatures(plots)

	treeJSON, err := json.Marshal(treeFC)
	if err != nil {
		return fmt.Errorf("marshal tree features: %w", err)
	}
	plotJSON, err := json.Marshal(plotFC)
	if err != nil {
		return fmt.Errorf("marshal plot features: %w", err)
	}
	treeHash := sha256.Sum256(treeJSON)
	plotHash := sha256.Sum256(plotJSON)

	s.mu.Lock()
	s.gen++
	myGen := s.gen
	pushTrees := !s.havePrev || treeHash != s.treeHash
	pushPlots := !s.havePrev || plotHash != s.plotHash
	s.treeHash, s.plotHash, s.havePrev = treeHash, plotHash, true
	s.mu.Unlock()

	if !pushTrees && !pushPlots {
		metrics.FeaturePushesSkipped.WithLabelValues("unchanged").Inc()
		return nil
	}

	// A newer Sync may have superseded this one while we were marshaling;
	// its full-replacement push makes ours redundant. Checking under
	// pushMu and holding it through the writes keeps a stale frame from
	// landing after its successor's.
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	if s.superseded(myGen) {
		metrics.FeaturePushesSkipped.WithLabelValues("superseded").Inc()
		return nil
	}

	if pushTrees {
		if err := s.surface.SetFeatureCollection(ctx, SourceTrees, treeFC); err != nil {
			return fmt.Errorf("push tree features: %w", err)
		}
		metrics.FeaturePushes.Inc()
	}
	if pushPlots {
		if err := s.surface.SetFeatureCollection(ctx, SourcePlots, plotFC); err != nil {
			return fmt.Errorf("push plot features: %w", err)
		}
		metrics.FeaturePushes.Inc()
	}
	return nil
}

func (s *FeatureSyncService) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// TreeFeatures maps trees to point features. Trees with non-finite
// positions are dropped and logged, never surfaced.
func TreeFeatures(trees []domain.Tree) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range trees {
		tree := &trees[i]
		if !tree.Position.IsFinite() {
			slog.Warn("dropping tree with non-finite position", "tree_id", tree.ID)
			metrics.FeaturesDropped.WithLabelValues("tree").Inc()
			continue
		}
		statusKey := domain.NormalizeStatus(string(tree.Status))

		f := geojson.NewFeature(orb.Point{tree.Position.X, tree.Position.Y})
		f.ID = tree.ID
		f.Properties["id"] = tree.ID
		f.Properties["status"] = statusKey
		f.Properties["label"] = domain.DisplayLabel(statusKey)
		f.Properties["active"] = domain.TreeStatus(statusKey).IsActive()
		if tree.Species != "" {
			f.Properties["species"] = tree.Species
		}
		if tree.PhotoURL != "" {
			f.Properties["photo_url"] = tree.PhotoURL
		}
		fc.Append(f)
	}
	return fc
}

// PlotFeatures maps plots to polygon features. Malformed boundaries (no
// rings, empty rings) are dropped with the same per-item isolation as trees.
func PlotFeatures(plots []domain.Plot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range plots {
		plot := &plots[i]
		geom, ok := plotGeometry(plot)
		if !ok {
			slog.Warn("dropping plot with malformed boundary", "plot_id", plot.ID)
			metrics.FeaturesDropped.WithLabelValues("plot").Inc()
			continue
		}
		f := geojson.NewFeature(geom)
		f.ID = plot.ID
		f.Properties["id"] = plot.ID
		f.Properties["name"] = plot.Name
		f.Properties["tree_count"] = plot.TreeCount
		fc.Append(f)
	}
	return fc
}

func plotGeometry(plot *domain.Plot) (orb.Geometry, bool) {
	polys := make([]orb.Polygon, 0, len(plot.Boundary))
	for _, ring := range plot.Boundary {
		r, ok := orbRing(ring)
		if !ok {
			continue
		}
		polys = append(polys, orb.Polygon{r})
	}
	switch len(polys) {
	case 0:
		return nil, false
	case 1:
		return polys[0], true
	default:
		mp := make(orb.MultiPolygon, len(polys))
		copy(mp, polys)
		return mp, true
	}
}

func orbRing(ring domain.Ring) (orb.Ring, bool) {
	if len(ring) < 3 {
		return nil, false
	}
	out := make(orb.Ring, 0, len(ring)+1)
	for _, p := range ring {
		if !p.IsFinite() {
			return nil, false
		}
		out = append(out, orb.Point{p.X, p.Y})
	}
	if !out.Closed() {
		out = append(out, out[0])
	}
	return out, true
}
