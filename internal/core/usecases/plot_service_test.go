package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/usecases"
	"github.com/aldalur/plantmap/internal/pkg/geometry"
)

// --- Mock PlotRepository ---

type mockPlotRepo struct {
	createFn func(ctx context.Context, plot *domain.Plot) (int64, error)
	listFn   func(ctx context.Context) ([]domain.Plot, error)
}

func (m *mockPlotRepo) Create(ctx context.Context, plot *domain.Plot) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, plot)
	}
	return 1, nil
}

func (m *mockPlotRepo) Update(ctx context.Context, plot *domain.Plot) error { return nil }
func (m *mockPlotRepo) Delete(ctx context.Context, id int64) error          { return nil }

func (m *mockPlotRepo) GetByID(ctx context.Context, id int64) (*domain.Plot, error) {
	return &domain.Plot{ID: id}, nil
}

func (m *mockPlotRepo) List(ctx context.Context) ([]domain.Plot, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Tests ---

func TestPlotService_CreateClosesBoundary(t *testing.T) {
	var stored *domain.Plot
	repo := &mockPlotRepo{
		createFn: func(ctx context.Context, plot *domain.Plot) (int64, error) {
			stored = plot
			return 9, nil
		},
	}
	pub := &mockPublisher{}
	svc := usecases.NewPlotService(repo, nil, pub)

	id, err := svc.Create(context.Background(), &domain.Plot{
		Name: "East slope",
		Boundary: []domain.Ring{{
			domain.Geographic(0, 0),
			domain.Geographic(0, 3),
			domain.Geographic(4, 3),
		}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 9 {
		t.Errorf("id = %d, want 9", id)
	}
	ring := stored.Boundary[0]
	if len(ring) != 4 || !ring.Closed() {
		t.Errorf("stored ring not closed: %v", ring)
	}
	if len(pub.plots) != 1 || pub.plots[0] != 9 {
		t.Errorf("plot events = %v, want [9]", pub.plots)
	}
}

func TestPlotService_CreateRejectsDegenerateRing(t *testing.T) {
	svc := usecases.NewPlotService(&mockPlotRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), &domain.Plot{
		Boundary: []domain.Ring{{
			domain.Geographic(0, 0),
			domain.Geographic(0, 0),
			domain.Geographic(1, 1),
		}},
	})
	if !errors.Is(err, geometry.ErrInsufficientVertices) {
		t.Fatalf("err = %v, want ErrInsufficientVertices", err)
	}
}

func TestPlotService_CreateRejectsEmptyBoundary(t *testing.T) {
	svc := usecases.NewPlotService(&mockPlotRepo{}, nil, nil)
	if _, err := svc.Create(context.Background(), &domain.Plot{Name: "empty"}); !errors.Is(err, geometry.ErrInsufficientVertices) {
		t.Fatalf("err = %v, want ErrInsufficientVertices", err)
	}
}

func TestPlotService_ListCaches(t *testing.T) {
	var calls int
	repo := &mockPlotRepo{
		listFn: func(ctx context.Context) ([]domain.Plot, error) {
			calls++
			return []domain.Plot{{ID: 1, Name: "a"}}, nil
		},
	}
	svc := usecases.NewPlotService(repo, newMockCache(), nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.List(context.Background()); err != nil {
			t.Fatalf("List: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("repository calls = %d, want 1", calls)
	}
}

func TestPlotService_StationLabels(t *testing.T) {
	svc := usecases.NewPlotService(&mockPlotRepo{}, nil, nil)

	got := svc.StationLabels(4)
	if want := []string{"A", "B", "C", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
	if got := svc.StationLabels(28); got[26] != "AA" || got[27] != "AB" {
		t.Errorf("labels[26:28] = %v, want [AA AB]", got[26:28])
	}
	if got := svc.StationLabels(0); got != nil {
		t.Errorf("labels(0) = %v, want nil", got)
	}
}
