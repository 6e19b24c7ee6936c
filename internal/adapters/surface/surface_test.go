package surface_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/aldalur/plantmap/internal/adapters/surface"
	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/core/usecases"
)

func collectFrames() (*[]surface.Frame, surface.WriteFunc) {
	frames := &[]surface.Frame{}
	return frames, func(f surface.Frame) error {
		*frames = append(*frames, f)
		return nil
	}
}

func TestClientWritesSetSourceFrame(t *testing.T) {
	frames, write := collectFrames()
	client := surface.NewClient(write)

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	if err := client.SetFeatureCollection(context.Background(), "plantmap-trees", fc); err != nil {
		t.Fatalf("SetFeatureCollection: %v", err)
	}

	if len(*frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(*frames))
	}
	f := (*frames)[0]
	if f.Type != surface.FrameSetSource || f.SourceID != "plantmap-trees" {
		t.Errorf("frame = %+v", f)
	}
	if f.Features == nil || len(f.Features.Features) != 1 {
		t.Errorf("features not carried: %+v", f.Features)
	}
}

func TestClientDrawToolFrames(t *testing.T) {
	frames, write := collectFrames()
	client := surface.NewClient(write)
	ctx := context.Background()

	_ = client.SetMode(ctx, domain.ModeDrawingPolygon)
	_ = client.Clear(ctx)
	_ = client.Disable(ctx)

	want := []string{surface.FrameDrawMode, surface.FrameDrawClear, surface.FrameDrawOff}
	if len(*frames) != len(want) {
		t.Fatalf("frames = %d, want %d", len(*frames), len(want))
	}
	for i, typ := range want {
		if (*frames)[i].Type != typ {
			t.Errorf("frame %d = %s, want %s", i, (*frames)[i].Type, typ)
		}
	}
	if (*frames)[0].Mode != "drawing_polygon" {
		t.Errorf("mode = %s", (*frames)[0].Mode)
	}
}

func TestDispatchRoutesDrawAndToolState(t *testing.T) {
	_, write := collectFrames()
	client := surface.NewClient(write)

	var rings []domain.Ring
	draw := usecases.NewDrawService(client, ports.SessionCallbacks{
		OnPolygonChange: func(r domain.Ring) { rings = append(rings, r) },
	})
	d := &surface.Dispatcher{
		Client:  client,
		Draw:    draw,
		Overlay: usecases.NewOverlayService(usecases.NewDetailService(nilDetailSource{}, nil), ports.SessionCallbacks{}),
	}

	frame, _ := json.Marshal(surface.Frame{
		Type: surface.EventDrawCreate,
		Ring: domain.Ring{
			domain.Geographic(0, 0),
			domain.Geographic(0, 3),
			domain.Geographic(4, 3),
		},
	})
	if err := d.Dispatch(context.Background(), frame); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(rings) != 1 || !rings[0].Closed() {
		t.Fatalf("polygon change = %v, want one closed ring", rings)
	}

	state, _ := json.Marshal(surface.Frame{Type: surface.EventToolState, Count: 2})
	if err := d.Dispatch(context.Background(), state); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if client.FeatureCount() != 2 {
		t.Errorf("feature count = %d, want 2", client.FeatureCount())
	}
}

func TestDispatchRejectsGarbage(t *testing.T) {
	_, write := collectFrames()
	client := surface.NewClient(write)
	d := &surface.Dispatcher{
		Client:  client,
		Draw:    usecases.NewDrawService(client, ports.SessionCallbacks{}),
		Overlay: usecases.NewOverlayService(usecases.NewDetailService(nilDetailSource{}, nil), ports.SessionCallbacks{}),
	}
	if err := d.Dispatch(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

type nilDetailSource struct{}

func (nilDetailSource) FetchTasks(ctx context.Context, treeID int64) ([]domain.Task, error) {
	return nil, nil
}

func (nilDetailSource) FetchTimeline(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error) {
	return nil, nil
}
