package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/pkg/crs"
	"github.com/aldalur/plantmap/internal/pkg/geometry"
	"github.com/aldalur/plantmap/internal/workflows"
)

// positionPayload is a coordinate as submitted by clients. System names a
// configured CRS; empty means the canonical geographic system.
type positionPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	System string  `json:"system,omitempty"`
}

func (p positionPayload) toDomain() domain.Position {
	sys := p.System
	if sys == "" {
		sys = domain.SystemGeographic
	}
	return domain.Position{X: p.X, Y: p.Y, System: sys}
}

// checkPosition rejects coordinates that are declared geographic but look
// projected, before they poison the canonical store.
func checkPosition(c *fiber.Ctx, p positionPayload) error {
	if p.System == "" && crs.LooksProjected(p.X, p.Y) {
		return errBadRequest(c, fmt.Sprintf("(%g, %g) looks like a projected coordinate; name its system", p.X, p.Y))
	}
	return nil
}

type treePayload struct {
	Position  positionPayload `json:"position"`
	Status    string          `json:"status"`
	Species   string          `json:"species,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	PhotoURL  string          `json:"photo_url,omitempty"`
	PlantedBy string          `json:"planted_by,omitempty"`
	PlantedAt *time.Time      `json:"planted_at,omitempty"`
}

// ListTreesHandler returns all trees, paginated.
func ListTreesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		trees, err := deps.Trees.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		window, pg := paginate(c, trees)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: window, Pagination: pg})
	}
}

// PlantTreeHandler records a new tree.
func PlantTreeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body treePayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if err := checkPosition(c, body.Position); err != nil {
			return err
		}

		tree := domain.Tree{
			Position:  body.Position.toDomain(),
			Status:    domain.TreeStatus(body.Status),
			Species:   body.Species,
			Notes:     body.Notes,
			PhotoURL:  body.PhotoURL,
			PlantedBy: body.PlantedBy,
			PlantedAt: body.PlantedAt,
		}
		id, err := deps.Trees.Plant(c.Context(), &tree)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	}
}

// GetTreeHandler returns a single tree.
func GetTreeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "tree id must be a positive integer")
		}
		tree, err := deps.Trees.GetByID(c.Context(), int64(id))
		if err != nil {
			return errNotFound(c, "tree not found")
		}
		return c.JSON(tree)
	}
}

// UpdateTreeStatusHandler changes a tree's status; aliases are accepted.
func UpdateTreeStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "tree id must be a positive integer")
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if err := deps.Trees.SetStatus(c.Context(), int64(id), body.Status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNotFound(c, "tree not found")
			}
			return errBadRequest(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// MoveTreeHandler repositions a tree.
func MoveTreeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "tree id must be a positive integer")
		}
		var body struct {
			Position positionPayload `json:"position"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if err := checkPosition(c, body.Position); err != nil {
			return err
		}
		if err := deps.Trees.Move(c.Context(), int64(id), body.Position.toDomain()); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNotFound(c, "tree not found")
			}
			return errBadRequest(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// DeleteTreeHandler removes a tree.
func DeleteTreeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "tree id must be a positive integer")
		}
		if err := deps.Trees.Remove(c.Context(), int64(id)); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNotFound(c, "tree not found")
			}
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// TreeDetailHandler returns the lazily fetched inspection detail.
// Concurrent requests for the same tree share one upstream fetch.
func TreeDetailHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "tree id must be a positive integer")
		}
		rec, err := deps.Details.GetDetail(c.UserContext(), int64(id))
		if err != nil {
			return errServiceUnavailable(c, err.Error())
		}
		return c.JSON(rec)
	}
}

type plotPayload struct {
	Name     string              `json:"name"`
	Boundary [][]positionPayload `json:"boundary"`
}

func (p plotPayload) toDomain() domain.Plot {
	rings := make([]domain.Ring, len(p.Boundary))
	for i, raw := range p.Boundary {
		ring := make(domain.Ring, len(raw))
		for j, pt := range raw {
			ring[j] = pt.toDomain()
		}
		rings[i] = ring
	}
	return domain.Plot{Name: p.Name, Boundary: rings}
}

// ListPlotsHandler returns all plots.
func ListPlotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		plots, err := deps.Plots.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		window, pg := paginate(c, plots)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: window, Pagination: pg})
	}
}

// CreatePlotHandler stores a new survey plot.
func CreatePlotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body plotPayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if body.Name == "" {
			return errBadRequest(c, "plot name is required")
		}

		plot := body.toDomain()
		id, err := deps.Plots.Create(c.Context(), &plot)
		if err != nil {
			if errors.Is(err, geometry.ErrInsufficientVertices) {
				return errUnprocessable(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	}
}

// GetPlotHandler returns a single plot.
func GetPlotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "plot id must be a positive integer")
		}
		plot, err := deps.Plots.GetByID(c.Context(), int64(id))
		if err != nil {
			return errNotFound(c, "plot not found")
		}
		return c.JSON(plot)
	}
}

// UpdatePlotHandler replaces a plot's name and boundary.
func UpdatePlotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "plot id must be a positive integer")
		}
		var body plotPayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		plot := body.toDomain()
		plot.ID = int64(id)
		if err := deps.Plots.Update(c.Context(), &plot); err != nil {
			switch {
			case errors.Is(err, geometry.ErrInsufficientVertices):
				return errUnprocessable(c, err.Error())
			case errors.Is(err, pgx.ErrNoRows):
				return errNotFound(c, "plot not found")
			default:
				return errInternal(c, err.Error())
			}
		}
		return c.SendStatus(204)
	}
}

// DeletePlotHandler removes a plot.
func DeletePlotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "plot id must be a positive integer")
		}
		if err := deps.Plots.Remove(c.Context(), int64(id)); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNotFound(c, "plot not found")
			}
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// PlotTreesHandler returns the trees spatially contained in a plot.
func PlotTreesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "plot id must be a positive integer")
		}
		trees, err := deps.Trees.ListByPlot(c.Context(), int64(id))
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(trees)
	}
}

// StationLabelsHandler returns spreadsheet-style labels for numbering a
// plot's survey stations on printed sheets.
func StationLabelsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count := c.QueryInt("count", 0)
		if count <= 0 || count > 10000 {
			return errBadRequest(c, "count must be between 1 and 10000")
		}
		return c.JSON(fiber.Map{"labels": deps.Plots.StationLabels(count)})
	}
}

// ListCRSHandler returns the configured coordinate reference systems.
func ListCRSHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		keys := []string{domain.SystemGeographic}
		if deps.Registry != nil {
			keys = append(keys, deps.Registry.Keys()...)
		}
		return c.JSON(fiber.Map{"systems": keys})
	}
}

// StartImportHandler launches the bulk tree import workflow and returns
// its workflow id for status polling.
func StartImportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Temporal == nil {
			return errServiceUnavailable(c, "imports are not configured")
		}

		var input workflows.BulkImportInput
		if err := c.BodyParser(&input); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if len(input.Rows) == 0 {
			return errBadRequest(c, "rows must not be empty")
		}

		opts := temporalclient.StartWorkflowOptions{
			ID:        fmt.Sprintf("bulk-import-%d", time.Now().UnixNano()),
			TaskQueue: deps.ImportTaskQueue,
		}
		run, err := deps.Temporal.ExecuteWorkflow(c.UserContext(), opts, workflows.BulkImportWorkflow, input)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.Status(202).JSON(fiber.Map{
			"workflow_id": run.GetID(),
			"run_id":      run.GetRunID(),
		})
	}
}
