package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// PlotRepo implements ports.PlotRepository with pgx. Boundaries go in as
// WKT and come back as GeoJSON, decoded with orb.
type PlotRepo struct {
	db *DB
}

// NewPlotRepo creates a new PlotRepo.
func NewPlotRepo(db *DB) *PlotRepo {
	return &PlotRepo{db: db}
}

const plotColumns = `
	id, name, ST_AsGeoJSON(boundary) as boundary,
	(SELECT count(*) FROM trees WHERE trees.plot_id = plots.id) as tree_count,
	created_at, updated_at`

// Create inserts a plot and returns its id.
func (r *PlotRepo) Create(ctx context.Context, p *domain.Plot) (int64, error) {
	wkt, err := boundaryWKT(p.Boundary)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO plots (name, boundary)
		VALUES ($1, ST_GeomFromText($2, 4326)::geography)
		RETURNING id
	`, p.Name, wkt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert plot: %w", err)
	}
	return id, nil
}

// Update replaces a plot's name and boundary and re-resolves tree
// membership for the new shape.
func (r *PlotRepo) Update(ctx context.Context, p *domain.Plot) error {
	wkt, err := boundaryWKT(p.Boundary)
	if err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE plots
		SET name = $2, boundary = ST_GeomFromText($3, 4326)::geography, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, wkt)
	if err != nil {
		return fmt.Errorf("update plot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	// Reassign trees: inside the new boundary in, outside out.
	_, err = r.db.Pool.Exec(ctx, `
		UPDATE trees SET plot_id = sub.plot_id FROM (
			SELECT t.id AS tree_id,
			       (SELECT p.id FROM plots p WHERE ST_Contains(p.boundary::geometry, t.location::geometry) LIMIT 1) AS plot_id
			FROM trees t
		) sub WHERE trees.id = sub.tree_id
	`)
	if err != nil {
		return fmt.Errorf("reassign trees: %w", err)
	}
	return nil
}

// Delete removes a plot; its trees lose their assignment.
func (r *PlotRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM plots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID returns a plot by id.
func (r *PlotRepo) GetByID(ctx context.Context, id int64) (*domain.Plot, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+plotColumns+` FROM plots WHERE id = $1`, id)
	return scanPlot(row)
}

// List returns all plots ordered by name.
func (r *PlotRepo) List(ctx context.Context) ([]domain.Plot, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+plotColumns+` FROM plots ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plots []domain.Plot
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		plots = append(plots, *p)
	}
	return plots, rows.Err()
}

func scanPlot(row pgx.Row) (*domain.Plot, error) {
	var p domain.Plot
	var boundary []byte
	err := row.Scan(&p.ID, &p.Name, &boundary, &p.TreeCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Boundary, err = decodeBoundary(boundary)
	if err != nil {
		return nil, fmt.Errorf("plot %d boundary: %w", p.ID, err)
	}
	return &p, nil
}

// boundaryWKT renders rings as a MULTIPOLYGON literal. Rings must already
// be closed; the use case layer guarantees that.
func boundaryWKT(rings []domain.Ring) (string, error) {
	if len(rings) == 0 {
		return "", fmt.Errorf("empty boundary")
	}
	var sb strings.Builder
	sb.WriteString("MULTIPOLYGON(")
	for i, ring := range rings {
		if len(ring) < 4 {
			return "", fmt.Errorf("ring %d has %d points", i, len(ring))
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("((")
		for j, pt := range ring {
			if j > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%g %g", pt.X, pt.Y)
		}
		sb.WriteString("))")
	}
	sb.WriteByte(')')
	return sb.String(), nil
}

func decodeBoundary(raw []byte) ([]domain.Ring, error) {
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	switch g := geom.Geometry().(type) {
	case orb.Polygon:
		return ringsFrom(g), nil
	case orb.MultiPolygon:
		var rings []domain.Ring
		for _, poly := range g {
			rings = append(rings, ringsFrom(poly)...)
		}
		return rings, nil
	default:
		return nil, fmt.Errorf("unexpected geometry %T", g)
	}
}

func ringsFrom(poly orb.Polygon) []domain.Ring {
	rings := make([]domain.Ring, 0, len(poly))
	for _, r := range poly {
		ring := make(domain.Ring, len(r))
		for i, pt := range r {
			ring[i] = domain.Geographic(pt[0], pt[1])
		}
		rings = append(rings, ring)
	}
	return rings
}
