package workflows

import (
	"context"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/core/ports"
	"github.com/aldalur/plantmap/internal/core/usecases"
	"github.com/aldalur/plantmap/internal/pkg/crs"
)

// ImportActivities holds the activity implementations for the bulk
// import workflow.
type ImportActivities struct {
	Trees     *usecases.TreeService
	Registry  *crs.Registry
	Publisher ports.EventPublisher
}

// CheckRows runs the pre-flight sanity check: how many rows convert to a
// coordinate inside plausible geographic range.
func (a *ImportActivities) CheckRows(ctx context.Context, input BulkImportInput) (SanityReport, error) {
	report := SanityReport{Total: len(input.Rows)}
	for _, row := range input.Rows {
		p := rowPosition(row, input.SystemKey)
		if a.Registry != nil {
			p, _ = a.Registry.ToCanonical(p, p.System)
		}
		if !p.IsFinite() || !p.IsGeographic() || crs.LooksProjected(p.X, p.Y) {
			report.OutOfRange++
		}
	}
	if report.Total > 0 {
		report.BadRatio = float64(report.OutOfRange) / float64(report.Total)
	}
	return report, nil
}

// ImportRows upserts the batch through the tree service, which converts,
// normalizes and drops unimportable rows per item.
func (a *ImportActivities) ImportRows(ctx context.Context, input BulkImportInput) (int, error) {
	trees := make([]domain.Tree, len(input.Rows))
	for i, row := range input.Rows {
		trees[i] = domain.Tree{
			Position:  rowPosition(row, input.SystemKey),
			Status:    domain.TreeStatus(row.Status),
			Species:   row.Species,
			Notes:     row.Notes,
			PlantedBy: row.PlantedBy,
		}
	}
	return a.Trees.BulkUpsert(ctx, trees)
}

// AnnounceRefresh tells consumers the tree list changed in bulk.
func (a *ImportActivities) AnnounceRefresh(ctx context.Context) error {
	if a.Publisher == nil {
		return nil
	}
	return a.Publisher.PublishEntityRefresh(ctx)
}

func rowPosition(row TreeRow, systemKey string) domain.Position {
	if systemKey == "" {
		return domain.Geographic(row.X, row.Y)
	}
	return domain.Position{X: row.X, Y: row.Y, System: systemKey}
}
