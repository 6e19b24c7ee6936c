package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TreeRow is one row of a bulk tree upload, as parsed from the field
// crew's export.
type TreeRow struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Status    string  `json:"status"`
	Species   string  `json:"species,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	PlantedBy string  `json:"planted_by,omitempty"`
}

// BulkImportInput is the input for the bulk import workflow. SystemKey
// names the CRS the rows were surveyed in; empty means geographic.
type BulkImportInput struct {
	Rows      []TreeRow `json:"rows"`
	SystemKey string    `json:"system_key,omitempty"`
}

// SanityReport is the pre-flight check result for an upload.
type SanityReport struct {
	Total      int     `json:"total"`
	OutOfRange int     `json:"out_of_range"`
	BadRatio   float64 `json:"bad_ratio"`
}

// reviewWindow is how long a suspicious upload waits for an operator
// cancel before the import proceeds anyway.
const reviewWindow = 10 * time.Minute

// BulkImportWorkflow imports a batch of surveyed trees. A sanity check
// runs first; when more than half the rows land outside plausible
// coordinate range the workflow pauses for a review window, then
// continues with the importable rows. Cancelling the workflow during the
// window aborts the import.
func BulkImportWorkflow(ctx workflow.Context, input BulkImportInput) (int, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting bulk import", "rows", len(input.Rows), "system", input.SystemKey)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var report SanityReport
	if err := workflow.ExecuteActivity(ctx, "CheckRows", input).Get(ctx, &report); err != nil {
		return 0, err
	}

	if report.BadRatio > 0.5 {
		logger.Warn("upload looks wrong, pausing for review",
			"out_of_range", report.OutOfRange, "total", report.Total)
		if err := workflow.Sleep(ctx, reviewWindow); err != nil {
			// Cancelled during the window: the operator pulled the plug.
			return 0, err
		}
		logger.Info("review window elapsed, continuing import")
	}

	var imported int
	if err := workflow.ExecuteActivity(ctx, "ImportRows", input).Get(ctx, &imported); err != nil {
		return 0, err
	}

	if err := workflow.ExecuteActivity(ctx, "AnnounceRefresh").Get(ctx, nil); err != nil {
		// Trees are stored; a missed announcement only delays re-sync.
		logger.Warn("refresh announcement failed", "error", err)
	}

	logger.Info("bulk import finished", "imported", imported)
	return imported, nil
}
