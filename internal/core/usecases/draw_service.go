package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/pkg/geometry"
	"github.com/aldalur/plantmap/internal/pkg/metrics"
)

// suppressWindow bounds how long a programmatic-clear marker may wait for
// its echoed delete event. Echoes arrive within a frame or two; anything
// later is a genuine user deletion and must not be swallowed.
const suppressWindow = 150 * time.Millisecond

// DrawService owns one session's drawing interaction. The surface's draw
// tool echoes programmatic writes back as events indistinguishable from
// user edits, so every mutation and every inbound event goes through here
// to keep the two apart.
type DrawService struct {
	tool ports.DrawTool
	cb   ports.SessionCallbacks

	mu            sync.Mutex
	session       domain.DrawSession
	enabled       bool
	suppressTimer *time.Timer
}

// NewDrawService creates an enabled controller in idle mode.
func NewDrawService(tool ports.DrawTool, cb ports.SessionCallbacks) *DrawService {
	return &DrawService{
		tool:    tool,
		cb:      cb,
		enabled: true,
		session: domain.DrawSession{Mode: domain.ModeIdle},
	}
}

// Mode returns the current interaction mode.
func (s *DrawService) Mode() domain.DrawMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Mode
}

// Session returns a copy of the current session state.
func (s *DrawService) Session() domain.DrawSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SetMode switches interaction mode, clearing any geometry left over from
// the previous mode so the tool never holds more than one committed shape.
// A no-op while disabled.
func (s *DrawService) SetMode(ctx context.Context, mode domain.DrawMode) error {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return nil
	}
	if s.session.Mode == mode {
		s.mu.Unlock()
		return nil
	}
	s.session = domain.DrawSession{Mode: mode}
	s.mu.Unlock()

	if err := s.clearProgrammatic(ctx); err != nil {
		return err
	}
	if err := s.tool.SetMode(ctx, mode); err != nil {
		return fmt.Errorf("set draw mode: %w", err)
	}
	return nil
}

// SetEnabled toggles the whole controller. Disabling neutralizes the tool
// without destroying geometry it already holds; only an uncommitted point
// draft is dropped. Enabling restores idle mode.
func (s *DrawService) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	if s.enabled == enabled {
		s.mu.Unlock()
		return nil
	}
	s.enabled = enabled
	if enabled {
		s.session = domain.DrawSession{Mode: domain.ModeIdle}
		s.mu.Unlock()
		return s.tool.SetMode(ctx, domain.ModeIdle)
	}
	wasPlacing := s.session.Mode == domain.ModePlacingPoint
	if wasPlacing {
		s.session.Draft = nil
	}
	s.mu.Unlock()

	if wasPlacing {
		if err := s.clearProgrammatic(ctx); err != nil {
			return err
		}
	}
	if err := s.tool.Disable(ctx); err != nil {
		return fmt.Errorf("disable draw tool: %w", err)
	}
	return nil
}

// SetDraft positions the unpersisted point placement programmatically,
// e.g. to seed the tool from a tapped coordinate.
func (s *DrawService) SetDraft(ctx context.Context, p domain.Position) error {
	s.mu.Lock()
	if !s.enabled || s.session.Mode != domain.ModePlacingPoint {
		s.mu.Unlock()
		return nil
	}
	draft := p
	s.session.Draft = &draft
	s.mu.Unlock()

	if err := s.tool.SetDraft(ctx, p); err != nil {
		return fmt.Errorf("set draft: %w", err)
	}
	return nil
}

// Draft returns the current unpersisted point, if any.
func (s *DrawService) Draft() *domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Draft == nil {
		return nil
	}
	draft := *s.session.Draft
	return &draft
}

// CommitPolygon validates and returns the pending polygon, closed. The
// session leaves drawing mode on success; an invalid ring keeps the
// session open so the user can keep editing.
func (s *DrawService) CommitPolygon(ctx context.Context) (domain.Ring, error) {
	s.mu.Lock()
	pending := s.session.Pending
	s.mu.Unlock()

	if err := geometry.Validate(pending); err != nil {
		return nil, err
	}
	ring := geometry.CloseRing(pending)

	if err := s.SetMode(ctx, domain.ModeIdle); err != nil {
		return nil, err
	}
	return ring, nil
}

// HandleDrawCreate processes a create event from the surface. The ring is
// closed before it is reported; the controller never persists it.
func (s *DrawService) HandleDrawCreate(ring domain.Ring) {
	s.handlePolygonEvent(ring)
}

// HandleDrawUpdate processes a vertex-edit event from the surface.
func (s *DrawService) HandleDrawUpdate(ring domain.Ring) {
	s.handlePolygonEvent(ring)
}

func (s *DrawService) handlePolygonEvent(ring domain.Ring) {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	closed := geometry.CloseRing(ring)
	s.session.Pending = closed
	s.mu.Unlock()

	if s.cb.OnPolygonChange != nil {
		s.cb.OnPolygonChange(closed)
	}
}

// HandleDrawDelete processes a deletion event from the surface. Exactly
// one event after a programmatic clear is swallowed; everything else is a
// user deletion and clears the pending polygon.
func (s *DrawService) HandleDrawDelete() {
	s.mu.Lock()
	if s.session.SuppressNextDelete {
		s.session.SuppressNextDelete = false
		s.stopSuppressTimerLocked()
		s.mu.Unlock()
		metrics.SuppressedDeletes.Inc()
		return
	}
	s.session.Pending = nil
	s.mu.Unlock()

	if s.cb.OnPolygonChange != nil {
		s.cb.OnPolygonChange(nil)
	}
}

// HandleDraftMove processes a drag of the unpersisted point. The new
// position is reported, not persisted; a save goes through the owning
// handler once the user confirms.
func (s *DrawService) HandleDraftMove(p domain.Position) {
	s.mu.Lock()
	if !s.enabled || s.session.Mode != domain.ModePlacingPoint {
		s.mu.Unlock()
		return
	}
	draft := p
	s.session.Draft = &draft
	s.mu.Unlock()

	if s.cb.OnDraftMove != nil {
		s.cb.OnDraftMove(p)
	}
}

// clearProgrammatic empties the draw tool and arms the one-shot delete
// suppression, but only when the tool actually holds features. Clearing
// an empty tool echoes nothing, and a stale marker would swallow the next
// real user deletion.
func (s *DrawService) clearProgrammatic(ctx context.Context) error {
	if s.tool.FeatureCount() == 0 {
		return nil
	}

	s.mu.Lock()
	s.session.SuppressNextDelete = true
	s.stopSuppressTimerLocked()
	s.suppressTimer = time.AfterFunc(suppressWindow, s.expireSuppress)
	s.mu.Unlock()

	if err := s.tool.Clear(ctx); err != nil {
		s.mu.Lock()
		s.session.SuppressNextDelete = false
		s.stopSuppressTimerLocked()
		s.mu.Unlock()
		return fmt.Errorf("clear draw tool: %w", err)
	}
	return nil
}

func (s *DrawService) expireSuppress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.SuppressNextDelete {
		slog.Debug("delete suppression expired unconsumed")
		s.session.SuppressNextDelete = false
	}
}

func (s *DrawService) stopSuppressTimerLocked() {
	if s.suppressTimer != nil {
		s.suppressTimer.Stop()
		s.suppressTimer = nil
	}
}
