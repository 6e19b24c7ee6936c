package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// TreeRepo implements ports.TreeRepository with pgx.
type TreeRepo struct {
	db *DB
}

// NewTreeRepo creates a new TreeRepo.
func NewTreeRepo(db *DB) *TreeRepo {
	return &TreeRepo{db: db}
}

const treeColumns = `
	id, plot_id,
	ST_X(location::geometry) as lon,
	ST_Y(location::geometry) as lat,
	status, COALESCE(species, ''), COALESCE(notes, ''), COALESCE(photo_url, ''),
	COALESCE(planted_by, ''), planted_at, created_at, updated_at`

// Create inserts a tree and returns its id. The plot assignment is
// resolved spatially from the stored boundaries.
func (r *TreeRepo) Create(ctx context.Context, t *domain.Tree) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO trees (plot_id, location, status, species, notes, photo_url, planted_by, planted_at)
		VALUES (
			(SELECT id FROM plots WHERE ST_Contains(boundary::geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326)) LIMIT 1),
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			$3, $4, $5, $6, $7, $8
		)
		RETURNING id
	`, t.Position.X, t.Position.Y, string(t.Status), t.Species, t.Notes,
		t.PhotoURL, t.PlantedBy, t.PlantedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tree: %w", err)
	}
	return id, nil
}

// Update replaces a tree's mutable fields, re-resolving the plot.
func (r *TreeRepo) Update(ctx context.Context, t *domain.Tree) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE trees
		SET plot_id = (SELECT id FROM plots WHERE ST_Contains(boundary::geometry, ST_SetSRID(ST_MakePoint($2, $3), 4326)) LIMIT 1),
		    location = ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
		    status = $4, species = $5, notes = $6, photo_url = $7, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Position.X, t.Position.Y, string(t.Status), t.Species, t.Notes, t.PhotoURL)
	if err != nil {
		return fmt.Errorf("update tree: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a tree.
func (r *TreeRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM trees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID returns a tree by id.
func (r *TreeRepo) GetByID(ctx context.Context, id int64) (*domain.Tree, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+treeColumns+` FROM trees WHERE id = $1`, id)
	return scanTree(row)
}

// List returns all trees ordered by id.
func (r *TreeRepo) List(ctx context.Context) ([]domain.Tree, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+treeColumns+` FROM trees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrees(rows)
}

// ListByPlot returns the trees spatially contained in one plot.
func (r *TreeRepo) ListByPlot(ctx context.Context, plotID int64) ([]domain.Tree, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+treeColumns+`
		FROM trees
		WHERE ST_Contains(
			(SELECT boundary::geometry FROM plots WHERE id = $1),
			location::geometry)
		ORDER BY id
	`, plotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrees(rows)
}

// UpsertBatch inserts many trees using pgx.Batch. Rows carrying an id
// update in place; rows without one insert.
func (r *TreeRepo) UpsertBatch(ctx context.Context, trees []domain.Tree) error {
	batch := &pgx.Batch{}
	for _, t := range trees {
		if t.ID != 0 {
			batch.Queue(`
				INSERT INTO trees (id, location, status, species, notes, photo_url, planted_by, planted_at)
				VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE
				SET location = EXCLUDED.location, status = EXCLUDED.status,
				    species = EXCLUDED.species, notes = EXCLUDED.notes,
				    photo_url = EXCLUDED.photo_url, updated_at = now()
			`, t.ID, t.Position.X, t.Position.Y, string(t.Status), t.Species,
				t.Notes, t.PhotoURL, t.PlantedBy, t.PlantedAt)
		} else {
			batch.Queue(`
				INSERT INTO trees (location, status, species, notes, photo_url, planted_by, planted_at)
				VALUES (ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, $4, $5, $6, $7, $8)
			`, t.Position.X, t.Position.Y, string(t.Status), t.Species,
				t.Notes, t.PhotoURL, t.PlantedBy, t.PlantedAt)
		}
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range trees {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func scanTree(row pgx.Row) (*domain.Tree, error) {
	var t domain.Tree
	var status string
	err := row.Scan(
		&t.ID, &t.PlotID, &t.Position.X, &t.Position.Y, &status,
		&t.Species, &t.Notes, &t.PhotoURL, &t.PlantedBy, &t.PlantedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TreeStatus(status)
	t.Position.System = domain.SystemGeographic
	return &t, nil
}

func scanTrees(rows pgx.Rows) ([]domain.Tree, error) {
	var trees []domain.Tree
	for rows.Next() {
		t, err := scanTree(rows)
		if err != nil {
			return nil, err
		}
		trees = append(trees, *t)
	}
	return trees, rows.Err()
}
