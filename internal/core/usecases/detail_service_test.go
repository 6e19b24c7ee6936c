package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/usecases"
)

// --- Mock DetailSource ---

type mockDetailSource struct {
	fetchTasksFn    func(ctx context.Context, treeID int64) ([]domain.Task, error)
	fetchTimelineFn func(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error)
}

func (m *mockDetailSource) FetchTasks(ctx context.Context, treeID int64) ([]domain.Task, error) {
	if m.fetchTasksFn != nil {
		return m.fetchTasksFn(ctx, treeID)
	}
	return nil, nil
}

func (m *mockDetailSource) FetchTimeline(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error) {
	if m.fetchTimelineFn != nil {
		return m.fetchTimelineFn(ctx, treeID)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Tests ---

func TestDetailService_CacheHit(t *testing.T) {
	var calls int32
	src := &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			atomic.AddInt32(&calls, 1)
			return []domain.Task{{ID: 1, TreeID: treeID, Status: "open"}}, nil
		},
	}
	svc := usecases.NewDetailService(src, nil)

	first, err := svc.GetDetail(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.GetDetail(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 underlying fetch, got %d", calls)
	}
	if first != second {
		t.Error("expected the cached record to be returned")
	}
	if first.Counts.Total != 1 || first.Counts.Pending != 1 {
		t.Errorf("unexpected counts: %+v", first.Counts)
	}
}

func TestDetailService_Dedup(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	src := &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return nil, nil
		},
	}
	svc := usecases.NewDetailService(src, nil)

	var wg sync.WaitGroup
	started := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			if _, err := svc.GetDetail(context.Background(), 7); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	<-started
	<-started
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 underlying fetch, got %d", got)
	}
}

func TestDetailService_Invalidation(t *testing.T) {
	var calls int32
	src := &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		},
	}
	svc := usecases.NewDetailService(src, nil)

	if _, err := svc.GetDetail(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.InvalidateAll()
	if _, err := svc.GetDetail(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected a fresh fetch after invalidation, got %d fetches", got)
	}
}

func TestDetailService_PartialRecord(t *testing.T) {
	src := &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			return []domain.Task{{ID: 1, Status: "done"}}, nil
		},
		fetchTimelineFn: func(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error) {
			return nil, errors.New("timeline backend down")
		},
	}
	svc := usecases.NewDetailService(src, nil)

	rec, err := svc.GetDetail(context.Background(), 9)
	if err != nil {
		t.Fatalf("partial failure must not fail the request: %v", err)
	}
	if !rec.Partial {
		t.Error("expected a partial record")
	}
	if rec.Counts.Done != 1 {
		t.Errorf("counts not derived from tasks: %+v", rec.Counts)
	}
}

func TestDetailService_OfflineFallback(t *testing.T) {
	cache := newMockCache()
	healthy := &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			return []domain.Task{{ID: 5, Status: "open"}}, nil
		},
	}
	svc := usecases.NewDetailService(healthy, cache)
	if _, err := svc.GetDetail(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// New service, all sources down, same offline store.
	down := &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			return nil, errors.New("unreachable")
		},
		fetchTimelineFn: func(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error) {
			return nil, errors.New("unreachable")
		},
	}
	svc2 := usecases.NewDetailService(down, cache)

	rec, err := svc2.GetDetail(context.Background(), 4)
	if err != nil {
		t.Fatalf("expected offline copy, got error: %v", err)
	}
	if len(rec.Tasks) != 1 || rec.Tasks[0].ID != 5 {
		t.Errorf("offline copy content wrong: %+v", rec.Tasks)
	}
	if !rec.Partial {
		t.Error("offline copies must be marked partial")
	}
}

func TestDetailService_TotalFailure(t *testing.T) {
	down := &mockDetailSource{
		fetchTasksFn: func(ctx context.Context, treeID int64) ([]domain.Task, error) {
			return nil, errors.New("unreachable")
		},
		fetchTimelineFn: func(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error) {
			return nil, errors.New("unreachable")
		},
	}
	svc := usecases.NewDetailService(down, nil)

	if _, err := svc.GetDetail(context.Background(), 11); err == nil {
		t.Fatal("expected an error when every source fails with no offline copy")
	}

	// The failed attempt must not leave a marker behind: a retry fetches.
	var calls int32
	down.fetchTasksFn = func(ctx context.Context, treeID int64) ([]domain.Task, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}
	if _, err := svc.GetDetail(context.Background(), 11); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected retry to fetch, calls=%d", calls)
	}
}
