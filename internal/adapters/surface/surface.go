// Package surface bridges the core ports to a map client speaking the
// plantmap frame protocol. Outbound frames carry rendering commands; the
// client echoes draw events and state reports back over the same socket.
package surface

import (
	"context"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
)

// Frame is one protocol message in either direction.
type Frame struct {
	Type     string                     `json:"type"`
	SourceID string                     `json:"source_id,omitempty"`
	LayerID  string                     `json:"layer_id,omitempty"`
	Features *geojson.FeatureCollection `json:"features,omitempty"`
	Layer    *ports.LayerSpec           `json:"layer,omitempty"`
	Bounds   *domain.Bounds             `json:"bounds,omitempty"`
	Mode     string                     `json:"mode,omitempty"`
	Position *domain.Position           `json:"position,omitempty"`
	Ring     domain.Ring                `json:"ring,omitempty"`
	TreeID   int64                      `json:"tree_id,omitempty"`
	Detail   *domain.DetailRecord       `json:"detail,omitempty"`
	Viewport *domain.Viewport           `json:"viewport,omitempty"`
	Count    int                        `json:"count,omitempty"`
	Hover    bool                       `json:"hover,omitempty"`
}

// Outbound frame types.
const (
	FrameSetSource   = "set_source"
	FrameAddLayer    = "add_layer"
	FrameRemoveLayer = "remove_layer"
	FrameFitBounds   = "fit_bounds"
	FrameDrawMode    = "draw_mode"
	FrameDrawDraft   = "draw_draft"
	FrameDrawClear   = "draw_clear"
	FrameDrawOff     = "draw_off"
	FrameInspect     = "inspect"
	FramePolygon     = "polygon"
	FrameDraftMoved  = "draft_moved"
)

// Inbound frame types.
const (
	EventHello           = "hello"
	EventDrawCreate      = "draw_create"
	EventDrawUpdate      = "draw_update"
	EventDrawDelete      = "draw_delete"
	EventDraftMove       = "draft_move"
	EventHover           = "hover"
	EventHoverEnd        = "hover_end"
	EventClick           = "click"
	EventBackgroundClick = "background_click"
	EventViewChange      = "view_change"
	EventToolState       = "tool_state"
)

// WriteFunc delivers one frame to the client. Implementations must be
// safe for concurrent use.
type WriteFunc func(f Frame) error

// Client implements ports.RenderSurface and ports.DrawTool over a frame
// writer. The draw feature count mirrors the client's tool_state reports.
type Client struct {
	write WriteFunc

	mu       sync.Mutex
	features int
}

// NewClient wraps a frame writer.
func NewClient(write WriteFunc) *Client {
	return &Client{write: write}
}

// --- ports.RenderSurface ---

func (c *Client) SetFeatureCollection(ctx context.Context, sourceID string, fc *geojson.FeatureCollection) error {
	return c.write(Frame{Type: FrameSetSource, SourceID: sourceID, Features: fc})
}

func (c *Client) AddLayer(ctx context.Context, layer ports.LayerSpec) error {
	return c.write(Frame{Type: FrameAddLayer, Layer: &layer})
}

func (c *Client) RemoveLayer(ctx context.Context, layerID string) error {
	return c.write(Frame{Type: FrameRemoveLayer, LayerID: layerID})
}

func (c *Client) FitToBounds(ctx context.Context, bounds domain.Bounds) error {
	return c.write(Frame{Type: FrameFitBounds, Bounds: &bounds})
}

// --- ports.DrawTool ---

func (c *Client) SetMode(ctx context.Context, mode domain.DrawMode) error {
	return c.write(Frame{Type: FrameDrawMode, Mode: string(mode)})
}

func (c *Client) SetDraft(ctx context.Context, p domain.Position) error {
	return c.write(Frame{Type: FrameDrawDraft, Position: &p})
}

func (c *Client) Clear(ctx context.Context) error {
	return c.write(Frame{Type: FrameDrawClear})
}

func (c *Client) Disable(ctx context.Context) error {
	return c.write(Frame{Type: FrameDrawOff})
}

func (c *Client) FeatureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features
}

// ReportFeatureCount records the client's tool_state report.
func (c *Client) ReportFeatureCount(n int) {
	c.mu.Lock()
	c.features = n
	c.mu.Unlock()
}
