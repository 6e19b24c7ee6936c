package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// RenderSurface is the narrow capability interface to the interactive map
// client. Tile loading, GPU drawing and hit-testing are the client's
// business; the subsystem must work against any implementation. Only the
// feature synchronizer and the draw controller may write to it.
type RenderSurface interface {
	SetFeatureCollection(ctx context.Context, sourceID string, fc *geojson.FeatureCollection) error
	AddLayer(ctx context.Context, layer LayerSpec) error
	RemoveLayer(ctx context.Context, layerID string) error
	FitToBounds(ctx context.Context, bounds domain.Bounds) error
}

// LayerSpec describes one styled layer on the surface.
type LayerSpec struct {
	ID       string         `json:"id"`
	SourceID string         `json:"source_id"`
	Kind     string         `json:"kind"` // circle | fill | line | symbol
	Paint    map[string]any `json:"paint,omitempty"`
}

// DrawTool is the client's stateful drawing control. Programmatic writes
// through this interface cause the client to echo created/updated/deleted
// events that are indistinguishable from user edits; the draw controller
// owns the disambiguation.
type DrawTool interface {
	SetMode(ctx context.Context, mode domain.DrawMode) error
	SetDraft(ctx context.Context, p domain.Position) error
	Clear(ctx context.Context) error
	Disable(ctx context.Context) error
	// FeatureCount reports how many features the tool currently holds,
	// mirrored from the last state the client reported.
	FeatureCount() int
}

// SessionCallbacks are the produced interface to the session owner (the
// UI relay). All invocations are synchronous; no queuing.
type SessionCallbacks struct {
	OnEntityInspect func(rec *domain.DetailRecord)
	OnPolygonChange func(ring domain.Ring)
	OnDraftMove     func(p domain.Position)
	OnViewChange    func(v domain.Viewport)
}
