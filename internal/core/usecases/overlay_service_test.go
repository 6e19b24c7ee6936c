package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/core/usecases"
)

// inspectRecorder collects OnEntityInspect calls across goroutines.
type inspectRecorder struct {
	mu   sync.Mutex
	recs []*domain.DetailRecord
	sig  chan struct{}
}

func newInspectRecorder() *inspectRecorder {
	return &inspectRecorder{sig: make(chan struct{}, 16)}
}

func (r *inspectRecorder) callbacks() ports.SessionCallbacks {
	return ports.SessionCallbacks{OnEntityInspect: func(rec *domain.DetailRecord) {
		r.mu.Lock()
		r.recs = append(r.recs, rec)
		r.mu.Unlock()
		r.sig <- struct{}{}
	}}
}

func (r *inspectRecorder) wait(t *testing.T, n int) []*domain.DetailRecord {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		got := len(r.recs)
		r.mu.Unlock()
		if got >= n {
			break
		}
		select {
		case <-r.sig:
		case <-deadline:
			t.Fatalf("timed out waiting for %d inspect calls, have %d", n, got)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.DetailRecord, len(r.recs))
	copy(out, r.recs)
	return out
}

func taskSource(delay map[int64]chan struct{}) *mockDetailSource {
	return &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			if delay != nil {
				if ch, ok := delay[treeID]; ok {
					<-ch
				}
			}
			return []domain.Task{{ID: treeID * 10, TreeID: treeID, Status: "done"}}, nil
		},
	}
}

func TestOverlayHoverDisabledByDefault(t *testing.T) {
	rec := newInspectRecorder()
	svc := usecases.NewOverlayService(usecases.NewDetailService(taskSource(nil), nil), rec.callbacks())

	svc.HandleHover(context.Background(), 1)
	if hover, _ := svc.Slots(); hover != 0 {
		t.Fatalf("hover slot = %d, want 0 while disabled", hover)
	}
}

func TestOverlayHoverPlaceholderThenUpgrade(t *testing.T) {
	rec := newInspectRecorder()
	svc := usecases.NewOverlayService(usecases.NewDetailService(taskSource(nil), nil), rec.callbacks())
	svc.SetHoverEnabled(true)

	svc.HandleHover(context.Background(), 1)
	got := rec.wait(t, 2)
	if got[0] != nil {
		t.Errorf("first emission = %v, want nil placeholder", got[0])
	}
	if got[1] == nil || got[1].TreeID != 1 {
		t.Errorf("second emission = %v, want record for tree 1", got[1])
	}
}

func TestOverlayHoverCachedSkipsPlaceholder(t *testing.T) {
	details := usecases.NewDetailService(taskSource(nil), nil)
	if _, err := details.GetDetail(context.Background(), 1); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	rec := newInspectRecorder()
	svc := usecases.NewOverlayService(details, rec.callbacks())
	svc.SetHoverEnabled(true)

	svc.HandleHover(context.Background(), 1)
	got := rec.wait(t, 1)
	if got[0] == nil || got[0].TreeID != 1 {
		t.Fatalf("cached hover = %v, want record for tree 1", got[0])
	}
}

func TestOverlayStaleHoverResponseDiscarded(t *testing.T) {
	release := map[int64]chan struct{}{1: make(chan struct{})}
	rec := newInspectRecorder()
	svc := usecases.NewOverlayService(usecases.NewDetailService(taskSource(release), nil), rec.callbacks())
	svc.SetHoverEnabled(true)

	svc.HandleHover(context.Background(), 1) // placeholder; fetch blocked
	svc.HandleHover(context.Background(), 2) // placeholder; fetch completes
	got := rec.wait(t, 3)                    // two placeholders + tree 2 record

	close(release[1]) // tree 1 fetch lands late; the slot has moved on
	time.Sleep(50 * time.Millisecond)

	got = rec.wait(t, 3)
	for _, r := range got[3:] {
		if r != nil && r.TreeID == 1 {
			t.Fatalf("stale record for tree 1 surfaced after slot moved to 2")
		}
	}
	last := got[len(got)-1]
	if last == nil || last.TreeID != 2 {
		t.Fatalf("last emission = %v, want record for tree 2", last)
	}
}

func TestOverlayClickPinsOverHover(t *testing.T) {
	rec := newInspectRecorder()
	svc := usecases.NewOverlayService(usecases.NewDetailService(taskSource(nil), nil), rec.callbacks())
	svc.SetHoverEnabled(true)

	svc.HandleClick(context.Background(), 5)
	rec.wait(t, 2) // placeholder + record for tree 5

	// Hovering another tree must not paint over the pinned overlay.
	svc.HandleHover(context.Background(), 6)
	time.Sleep(50 * time.Millisecond)
	got := rec.wait(t, 2)
	for _, r := range got {
		if r != nil && r.TreeID == 6 {
			t.Fatalf("hover painted over pinned click overlay")
		}
	}

	// Hover-end keeps the pinned overlay up.
	before := len(rec.wait(t, 2))
	svc.HandleHoverEnd()
	time.Sleep(20 * time.Millisecond)
	if after := len(rec.wait(t, 2)); after != before {
		t.Fatalf("hover end dismissed pinned overlay")
	}
}

func TestOverlayBackgroundClickDismisses(t *testing.T) {
	rec := newInspectRecorder()
	svc := usecases.NewOverlayService(usecases.NewDetailService(taskSource(nil), nil), rec.callbacks())

	svc.HandleClick(context.Background(), 5)
	rec.wait(t, 2)

	svc.HandleBackgroundClick()
	got := rec.wait(t, 3)
	if got[len(got)-1] != nil {
		t.Fatalf("background click emitted %v, want nil", got[len(got)-1])
	}
	if _, click := svc.Slots(); click != 0 {
		t.Fatalf("click slot = %d, want 0 after dismiss", click)
	}
}

func TestOverlayClickSameTreeToggles(t *testing.T) {
	rec := newInspectRecorder()
	svc := usecases.NewOverlayService(usecases.NewDetailService(taskSource(nil), nil), rec.callbacks())

	svc.HandleClick(context.Background(), 5)
	rec.wait(t, 2)
	svc.HandleClick(context.Background(), 5)
	got := rec.wait(t, 3)
	if got[len(got)-1] != nil {
		t.Fatalf("toggle click emitted %v, want nil", got[len(got)-1])
	}
}
