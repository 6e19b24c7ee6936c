package usecases_test

import (
	"context"
	"math"
	"testing"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/usecases"
	"github.com/aldalur/plantmap/internal/pkg/crs"
)

// --- Mock TreeRepository ---

type mockTreeRepo struct {
	createFn      func(ctx context.Context, tree *domain.Tree) (int64, error)
	updateFn      func(ctx context.Context, tree *domain.Tree) error
	getByIDFn     func(ctx context.Context, id int64) (*domain.Tree, error)
	listFn        func(ctx context.Context) ([]domain.Tree, error)
	upsertBatchFn func(ctx context.Context, trees []domain.Tree) error
}

func (m *mockTreeRepo) Create(ctx context.Context, tree *domain.Tree) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, tree)
	}
	return 1, nil
}

func (m *mockTreeRepo) Update(ctx context.Context, tree *domain.Tree) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, tree)
	}
	return nil
}

func (m *mockTreeRepo) Delete(ctx context.Context, id int64) error { return nil }

func (m *mockTreeRepo) GetByID(ctx context.Context, id int64) (*domain.Tree, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Tree{ID: id, Position: domain.Geographic(0, 0), Status: domain.StatusHealthy}, nil
}

func (m *mockTreeRepo) List(ctx context.Context) ([]domain.Tree, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockTreeRepo) ListByPlot(ctx context.Context, plotID int64) ([]domain.Tree, error) {
	return nil, nil
}

func (m *mockTreeRepo) UpsertBatch(ctx context.Context, trees []domain.Tree) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, trees)
	}
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	refreshes int
	planted   []int64
	plots     []int64
}

func (m *mockPublisher) PublishEntityRefresh(ctx context.Context) error {
	m.refreshes++
	return nil
}

func (m *mockPublisher) PublishTreePlanted(ctx context.Context, tree *domain.Tree) error {
	m.planted = append(m.planted, tree.ID)
	return nil
}

func (m *mockPublisher) PublishPlotChanged(ctx context.Context, plotID int64) error {
	m.plots = append(m.plots, plotID)
	return nil
}

func utmRegistry() *crs.Registry {
	return crs.NewRegistry(map[string]crs.Definition{
		"utm32n": {Authority: 32632, Family: "utm", Zone: 32, Northern: true},
	})
}

// --- Tests ---

func TestTreeService_PlantConvertsAndNormalizes(t *testing.T) {
	var stored *domain.Tree
	repo := &mockTreeRepo{
		createFn: func(ctx context.Context, tree *domain.Tree) (int64, error) {
			stored = tree
			return 42, nil
		},
	}
	pub := &mockPublisher{}
	reg := utmRegistry()
	svc := usecases.NewTreeService(repo, nil, pub, reg)

	proj, warn := reg.FromCanonical(domain.Geographic(7.4951, 9.0579), "utm32n")
	if warn != nil {
		t.Fatalf("projecting fixture: %v", warn)
	}

	id, err := svc.Plant(context.Background(), &domain.Tree{
		Position: proj,
		Status:   "needs-replacement",
	})
	if err != nil {
		t.Fatalf("Plant: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
	if !stored.Position.IsGeographic() {
		t.Errorf("stored position not canonical: %+v", stored.Position)
	}
	if math.Abs(stored.Position.X-7.4951) > 1e-3 || math.Abs(stored.Position.Y-9.0579) > 1e-3 {
		t.Errorf("converted position = (%v, %v)", stored.Position.X, stored.Position.Y)
	}
	if stored.Status != domain.StatusNeedReplacement {
		t.Errorf("status = %q, want need_replacement", stored.Status)
	}
	if len(pub.planted) != 1 || pub.planted[0] != 42 {
		t.Errorf("planted events = %v, want [42]", pub.planted)
	}
}

func TestTreeService_PlantRejectsUnknownStatus(t *testing.T) {
	svc := usecases.NewTreeService(&mockTreeRepo{}, nil, nil, nil)
	_, err := svc.Plant(context.Background(), &domain.Tree{
		Position: domain.Geographic(0, 0),
		Status:   "petrified",
	})
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestTreeService_PlantRejectsNonFinite(t *testing.T) {
	svc := usecases.NewTreeService(&mockTreeRepo{}, nil, nil, nil)
	_, err := svc.Plant(context.Background(), &domain.Tree{
		Position: domain.Geographic(math.NaN(), 0),
		Status:   domain.StatusHealthy,
	})
	if err == nil {
		t.Fatal("expected error for non-finite position")
	}
}

func TestTreeService_ListCaches(t *testing.T) {
	var calls int
	repo := &mockTreeRepo{
		listFn: func(ctx context.Context) ([]domain.Tree, error) {
			calls++
			return []domain.Tree{{ID: 1, Position: domain.Geographic(0, 0), Status: domain.StatusHealthy}}, nil
		},
	}
	svc := usecases.NewTreeService(repo, newMockCache(), nil, nil)

	for i := 0; i < 3; i++ {
		trees, err := svc.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(trees) != 1 {
			t.Fatalf("trees = %d, want 1", len(trees))
		}
	}
	if calls != 1 {
		t.Errorf("repository calls = %d, want 1", calls)
	}
}

func TestTreeService_PlantInvalidatesListCache(t *testing.T) {
	var calls int
	repo := &mockTreeRepo{
		listFn: func(ctx context.Context) ([]domain.Tree, error) {
			calls++
			return nil, nil
		},
	}
	svc := usecases.NewTreeService(repo, newMockCache(), nil, nil)

	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := svc.Plant(context.Background(), &domain.Tree{
		Position: domain.Geographic(1, 1),
		Status:   domain.StatusHealthy,
	}); err != nil {
		t.Fatalf("Plant: %v", err)
	}
	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	if calls != 2 {
		t.Errorf("repository calls = %d, want 2 (cache dropped on plant)", calls)
	}
}

func TestTreeService_BulkUpsertSkipsBadRows(t *testing.T) {
	var stored []domain.Tree
	repo := &mockTreeRepo{
		upsertBatchFn: func(ctx context.Context, trees []domain.Tree) error {
			stored = trees
			return nil
		},
	}
	pub := &mockPublisher{}
	svc := usecases.NewTreeService(repo, nil, pub, nil)

	n, err := svc.BulkUpsert(context.Background(), []domain.Tree{
		{Position: domain.Geographic(1, 1), Status: domain.StatusHealthy},
		{Position: domain.Geographic(math.Inf(1), 1), Status: domain.StatusHealthy},
		{Position: domain.Geographic(2, 2), Status: "bogus"},
		{Position: domain.Geographic(3, 3), Status: "alive"},
	})
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if n != 2 || len(stored) != 2 {
		t.Fatalf("kept = %d/%d, want 2", n, len(stored))
	}
	if stored[1].Status != domain.StatusHealthy {
		t.Errorf("alias not normalized: %q", stored[1].Status)
	}
	if pub.refreshes != 1 {
		t.Errorf("refresh events = %d, want 1", pub.refreshes)
	}
}
