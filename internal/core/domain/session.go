package domain

// DrawMode is the interaction mode of a map session's drawing tool.
type DrawMode string

const (
	ModeIdle           DrawMode = "idle"
	ModePlacingPoint   DrawMode = "placing_point"
	ModeDrawingPolygon DrawMode = "drawing_polygon"
)

// DrawSession is the ephemeral state of one drawing interaction. It is
// created on mode entry and destroyed on mode exit or commit. Only the
// draw controller mutates it.
type DrawSession struct {
	Mode DrawMode

	// Draft is the in-progress, unpersisted point placement, if any.
	Draft *Position

	// Pending is the unsaved polygon geometry, if any.
	Pending Ring

	// SuppressNextDelete marks that the next surface-originated deletion
	// event was caused by a programmatic clear and must be swallowed.
	SuppressNextDelete bool
}
