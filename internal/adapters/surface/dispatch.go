package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/usecases"
)

// Dispatcher routes inbound client frames to the session's controllers.
type Dispatcher struct {
	Client  *Client
	Draw    *usecases.DrawService
	Overlay *usecases.OverlayService

	// OnViewChange receives viewport reports; optional.
	OnViewChange func(v domain.Viewport)
}

// Dispatch decodes one inbound frame and routes it. Unknown frame types
// are logged and skipped so protocol additions don't kill old sessions.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case EventHello:
		d.Overlay.SetHoverEnabled(f.Hover)
	case EventDrawCreate:
		d.Draw.HandleDrawCreate(f.Ring)
	case EventDrawUpdate:
		d.Draw.HandleDrawUpdate(f.Ring)
	case EventDrawDelete:
		d.Draw.HandleDrawDelete()
	case EventDraftMove:
		if f.Position != nil {
			d.Draw.HandleDraftMove(*f.Position)
		}
	case EventHover:
		d.Overlay.HandleHover(ctx, f.TreeID)
	case EventHoverEnd:
		d.Overlay.HandleHoverEnd()
	case EventClick:
		d.Overlay.HandleClick(ctx, f.TreeID)
	case EventBackgroundClick:
		d.Overlay.HandleBackgroundClick()
	case EventViewChange:
		if f.Viewport != nil && d.OnViewChange != nil {
			d.OnViewChange(*f.Viewport)
		}
	case EventToolState:
		d.Client.ReportFeatureCount(f.Count)
	default:
		slog.Debug("unknown client frame", "type", f.Type)
	}
	return nil
}
