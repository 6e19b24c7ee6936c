package usecases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
)

// OverlayService drives the tree inspection overlay from hover and click
// events. Hover and click are independent slots; a click pins the overlay
// and wins over hover until dismissed. Detail fetches are never cancelled:
// a stale response is discarded by comparing ids when it lands, and the
// completed fetch still warms the detail cache.
type OverlayService struct {
	details *DetailService
	cb      ports.SessionCallbacks

	mu           sync.Mutex
	hoverID      int64
	clickID      int64
	hoverEnabled bool
}

// NewOverlayService creates an overlay controller. Hover is off until the
// session reports a pointer-capable client via SetHoverEnabled.
func NewOverlayService(details *DetailService, cb ports.SessionCallbacks) *OverlayService {
	return &OverlayService{details: details, cb: cb}
}

// SetHoverEnabled toggles hover handling. Touch clients keep it off so a
// synthetic hover fired before a tap cannot double-open the overlay.
func (s *OverlayService) SetHoverEnabled(enabled bool) {
	s.mu.Lock()
	s.hoverEnabled = enabled
	if !enabled {
		s.hoverID = 0
	}
	s.mu.Unlock()
}

// Slots returns the tree ids currently occupying the hover and click
// slots; zero means empty.
func (s *OverlayService) Slots() (hover, click int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hoverID, s.clickID
}

// HandleHover opens the hover slot for a tree. A cached record shows
// immediately; otherwise the overlay opens empty and upgrades when the
// fetch lands, unless the pointer moved on in the meantime.
func (s *OverlayService) HandleHover(ctx context.Context, treeID int64) {
	s.mu.Lock()
	if !s.hoverEnabled || s.hoverID == treeID {
		s.mu.Unlock()
		return
	}
	s.hoverID = treeID
	s.mu.Unlock()

	s.open(ctx, treeID, false)
}

// HandleHoverEnd closes the hover slot. A pinned click overlay stays up.
func (s *OverlayService) HandleHoverEnd() {
	s.mu.Lock()
	s.hoverID = 0
	clickOpen := s.clickID != 0
	s.mu.Unlock()

	if !clickOpen {
		s.inspect(nil)
	}
}

// HandleClick pins the overlay on a tree. Clicking the pinned tree again
// dismisses it.
func (s *OverlayService) HandleClick(ctx context.Context, treeID int64) {
	s.mu.Lock()
	if s.clickID == treeID {
		s.clickID = 0
		s.mu.Unlock()
		s.inspect(nil)
		return
	}
	s.clickID = treeID
	s.mu.Unlock()

	s.open(ctx, treeID, true)
}

// HandleBackgroundClick dismisses the pinned overlay. An active hover
// shows through again afterwards.
func (s *OverlayService) HandleBackgroundClick() {
	s.mu.Lock()
	s.clickID = 0
	hoverID := s.hoverID
	s.mu.Unlock()

	if hoverID == 0 {
		s.inspect(nil)
		return
	}
	if rec, ok := s.details.Peek(hoverID); ok {
		s.inspect(rec)
	} else {
		s.inspect(nil)
	}
}

// open shows whatever is cached for the tree right away, then upgrades
// the overlay when the full record arrives, guarding against the slot
// having moved to another tree while the fetch was in flight.
func (s *OverlayService) open(ctx context.Context, treeID int64, click bool) {
	if rec, ok := s.details.Peek(treeID); ok {
		s.emit(treeID, click, rec)
		return
	}
	s.emit(treeID, click, nil)

	go func() {
		rec, err := s.details.GetDetail(ctx, treeID)
		if err != nil {
			slog.Warn("overlay detail fetch failed", "tree_id", treeID, "error", err)
			return
		}
		s.emit(treeID, click, rec)
	}()
}

// emit delivers an inspection record only when the originating slot still
// points at the same tree, and hover never paints over a pinned click.
func (s *OverlayService) emit(treeID int64, click bool, rec *domain.DetailRecord) {
	s.mu.Lock()
	current := s.hoverID
	if click {
		current = s.clickID
	}
	stale := current != treeID
	hidden := !click && s.clickID != 0
	s.mu.Unlock()

	if stale || hidden {
		return
	}
	s.inspect(rec)
}

func (s *OverlayService) inspect(rec *domain.DetailRecord) {
	if s.cb.OnEntityInspect != nil {
		s.cb.OnEntityInspect(rec)
	}
}
