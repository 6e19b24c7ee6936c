package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/aldalur/plantmap/internal/adapters/surface"
	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/core/usecases"
	"github.com/aldalur/plantmap/internal/pkg/metrics"
)

// defaultLayers is the base styling pushed to every new session. The
// active halo renders under the status circles so healthy-like trees get
// the highlight ring.
var defaultLayers = []ports.LayerSpec{
	{ID: "plot-fill", SourceID: usecases.SourcePlots, Kind: "fill", Paint: map[string]any{"fill-opacity": 0.15}},
	{ID: "plot-line", SourceID: usecases.SourcePlots, Kind: "line"},
	{ID: "tree-halo", SourceID: usecases.SourceTrees, Kind: "circle", Paint: map[string]any{"filter-active": true, "circle-radius": 10}},
	{ID: "tree-dot", SourceID: usecases.SourceTrees, Kind: "circle", Paint: map[string]any{"circle-radius": 6}},
}

// MapSessionHandler returns a handler that upgrades to WebSocket and
// hosts one interactive map session: it owns the session's draw and
// overlay controllers, pushes feature updates, and relays bulk-refresh
// events from NATS.
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("map session connected", "remote", remoteAddr)
		metrics.ActiveSessions.Inc()
		defer metrics.ActiveSessions.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Thread-safe frame writer shared by all session components.
		var wmu sync.Mutex
		writeFrame := func(f surface.Frame) error {
			data, err := json.Marshal(f)
			if err != nil {
				return err
			}
			wmu.Lock()
			defer wmu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		client := surface.NewClient(writeFrame)
		callbacks := ports.SessionCallbacks{
			OnEntityInspect: func(rec *domain.DetailRecord) {
				if rec != nil {
					_ = writeFrame(surface.Frame{Type: surface.FrameInspect, TreeID: rec.TreeID, Detail: rec})
				} else {
					_ = writeFrame(surface.Frame{Type: surface.FrameInspect})
				}
			},
			OnPolygonChange: func(ring domain.Ring) {
				_ = writeFrame(surface.Frame{Type: surface.FramePolygon, Ring: ring})
			},
			OnDraftMove: func(p domain.Position) {
				_ = writeFrame(surface.Frame{Type: surface.FrameDraftMoved, Position: &p})
			},
		}

		syncer := usecases.NewFeatureSyncService(client)
		dispatcher := &surface.Dispatcher{
			Client:  client,
			Draw:    usecases.NewDrawService(client, callbacks),
			Overlay: usecases.NewOverlayService(deps.Details, callbacks),
		}

		for _, layer := range defaultLayers {
			if err := client.AddLayer(ctx, layer); err != nil {
				slog.Warn("add layer failed", "layer", layer.ID, "error", err)
				return
			}
		}

		pushFeatures := func() {
			trees, err := deps.Trees.List(ctx)
			if err != nil {
				slog.Warn("session tree list failed", "error", err)
				return
			}
			plots, err := deps.Plots.List(ctx)
			if err != nil {
				slog.Warn("session plot list failed", "error", err)
				return
			}
			if err := syncer.Sync(ctx, trees, plots); err != nil {
				slog.Warn("session feature sync failed", "error", err)
			}
		}
		pushFeatures()

		// Relay bulk refreshes: re-pull and re-sync this session's features.
		var refreshSub *nats.Subscription
		if deps.NATS != nil {
			var err error
			refreshSub, err = deps.NATS.Subscribe("plantmap.trees.refresh", func(msg *nats.Msg) {
				pushFeatures()
			})
			if err != nil {
				slog.Warn("session refresh subscribe failed", "error", err)
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					wmu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					wmu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			if err := dispatcher.Dispatch(ctx, msg); err != nil {
				_ = writeFrame(surface.Frame{Type: "error"})
				slog.Debug("bad client frame", "remote", remoteAddr, "error", err)
			}
		}

		close(done)
		if refreshSub != nil {
			_ = refreshSub.Unsubscribe()
		}
		slog.Info("map session disconnected", "remote", remoteAddr)
	}
}
