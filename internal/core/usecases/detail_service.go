package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/pkg/metrics"
)

const offlineDetailTTL = 24 * 60 * 60 // seconds

// detailEntry is the per-tree cache slot. An entry is either pending (done
// not yet closed) or resolved; a single map of tagged entries enforces the
// at-most-one-in-flight invariant structurally instead of keeping separate
// result and in-flight maps.
type detailEntry struct {
	done    chan struct{}
	pending bool
	rec     *domain.DetailRecord
	err     error
}

// DetailService lazily fetches and caches per-tree inspection detail.
// The cache and in-flight state are owned exclusively by this service.
type DetailService struct {
	source  ports.DetailSource
	offline ports.CacheService // optional last-known-copy store

	mu      sync.Mutex
	entries map[int64]*detailEntry

	now func() time.Time
}

// NewDetailService creates a DetailService. offline may be nil.
func NewDetailService(source ports.DetailSource, offline ports.CacheService) *DetailService {
	return &DetailService{
		source:  source,
		offline: offline,
		entries: make(map[int64]*detailEntry),
		now:     time.Now,
	}
}

// GetDetail returns the detail record for a tree. A cached record is
// returned immediately; while a fetch for the same id is outstanding,
// callers share its result instead of issuing a duplicate fetch.
func (s *DetailService) GetDetail(ctx context.Context, treeID int64) (*domain.DetailRecord, error) {
	s.mu.Lock()
	if e, ok := s.entries[treeID]; ok {
		if !e.pending {
			s.mu.Unlock()
			metrics.DetailCacheHits.Inc()
			return e.rec, nil
		}
		s.mu.Unlock()
		metrics.DetailInflightJoins.Inc()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.done:
			return e.rec, e.err
		}
	}

	e := &detailEntry{done: make(chan struct{}), pending: true}
	s.entries[treeID] = e
	s.mu.Unlock()
	metrics.DetailCacheMisses.Inc()

	rec, err := s.fetch(ctx, treeID)

	s.mu.Lock()
	e.rec, e.err = rec, err
	e.pending = false
	if cur, ok := s.entries[treeID]; ok && cur == e {
		// A failed fetch is a cache miss for that attempt: drop the marker
		// so the next call retries. An invalidated entry stays dropped.
		if err != nil {
			delete(s.entries, treeID)
		}
	}
	s.mu.Unlock()
	close(e.done)

	return rec, err
}

// Peek returns the cached record without fetching. Used to render an
// instant placeholder while a fresh fetch is on its way.
func (s *DetailService) Peek(treeID int64) (*domain.DetailRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[treeID]; ok && !e.pending {
		return e.rec, true
	}
	return nil, false
}

// InvalidateAll drops the whole cache, in-flight markers included. Bulk
// entity refreshes may have changed status or photos upstream, and nothing
// tracks which records are affected, so partial invalidation is not offered.
func (s *DetailService) InvalidateAll() {
	s.mu.Lock()
	s.entries = make(map[int64]*detailEntry)
	s.mu.Unlock()
}

// fetch assembles a record from the two independently fallible sources,
// degrading to a partial record or the offline copy instead of failing
// the whole request.
func (s *DetailService) fetch(ctx context.Context, treeID int64) (*domain.DetailRecord, error) {
	tasks, taskErr := s.source.FetchTasks(ctx, treeID)
	timeline, tlErr := s.source.FetchTimeline(ctx, treeID)

	if taskErr != nil && tlErr != nil {
		if rec := s.offlineCopy(ctx, treeID); rec != nil {
			metrics.DetailFallbacks.Inc()
			return rec, nil
		}
		return nil, fmt.Errorf("detail fetch for tree %d: %w", treeID, taskErr)
	}

	rec := &domain.DetailRecord{
		TreeID:    treeID,
		Tasks:     tasks,
		Timeline:  timeline,
		Counts:    domain.CountTasks(tasks, s.now()),
		Partial:   taskErr != nil || tlErr != nil,
		FetchedAt: s.now(),
	}
	if taskErr != nil {
		slog.Warn("task lookup failed, serving partial detail", "tree_id", treeID, "error", taskErr)
	}
	if tlErr != nil {
		slog.Warn("timeline lookup failed, serving partial detail", "tree_id", treeID, "error", tlErr)
	}

	s.storeOfflineCopy(ctx, rec)
	return rec, nil
}

func (s *DetailService) offlineCopy(ctx context.Context, treeID int64) *domain.DetailRecord {
	if s.offline == nil {
		return nil
	}
	data, err := s.offline.Get(ctx, offlineKey(treeID))
	if err != nil {
		return nil
	}
	var rec domain.DetailRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	rec.Partial = true
	return &rec
}

func (s *DetailService) storeOfflineCopy(ctx context.Context, rec *domain.DetailRecord) {
	if s.offline == nil || rec.Partial {
		return
	}
	if data, err := json.Marshal(rec); err == nil {
		_ = s.offline.Set(ctx, offlineKey(rec.TreeID), data, offlineDetailTTL)
	}
}

func offlineKey(treeID int64) string {
	return fmt.Sprintf("detail:tree:%d", treeID)
}
