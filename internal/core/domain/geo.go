package domain

import "math"

// SystemGeographic is the canonical coordinate reference system key.
// All persisted positions are stored in this system (WGS 84 lon/lat);
// projected systems are a display/input concern only.
const SystemGeographic = "geographic"

// Position is a coordinate pair tagged with the reference system it is
// expressed in. For geographic positions X is longitude and Y is latitude;
// for projected systems X is easting and Y is northing.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	System string  `json:"system,omitempty"`
}

// Geographic builds a canonical position from longitude and latitude.
func Geographic(lon, lat float64) Position {
	return Position{X: lon, Y: lat, System: SystemGeographic}
}

// IsGeographic reports whether the position is in the canonical system.
// An empty system tag is treated as geographic.
func (p Position) IsGeographic() bool {
	return p.System == "" || p.System == SystemGeographic
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// CoordsEqual reports exact coordinate equality, ignoring the system tag.
func (p Position) CoordsEqual(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}

// Ring is an ordered sequence of boundary positions. A ring with at least
// three distinct vertices describes a valid polygon boundary; a closed ring
// repeats its first position as its last.
type Ring []Position

// Closed reports whether the ring's last position repeats its first.
func (r Ring) Closed() bool {
	return len(r) >= 2 && r[0].CoordsEqual(r[len(r)-1])
}

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf computes the bounding box of a set of geographic positions.
// Non-finite positions are ignored; ok is false if nothing remained.
func BoundsOf(points []Position) (b Bounds, ok bool) {
	b = Bounds{MinLat: math.MaxFloat64, MinLon: math.MaxFloat64,
		MaxLat: -math.MaxFloat64, MaxLon: -math.MaxFloat64}
	for _, p := range points {
		if !p.IsFinite() {
			continue
		}
		ok = true
		b.MinLon = math.Min(b.MinLon, p.X)
		b.MaxLon = math.Max(b.MaxLon, p.X)
		b.MinLat = math.Min(b.MinLat, p.Y)
		b.MaxLat = math.Max(b.MaxLat, p.Y)
	}
	return b, ok
}

// Viewport describes the map camera state reported by a client.
type Viewport struct {
	Center  Position `json:"center"`
	Zoom    float64  `json:"zoom"`
	Bearing float64  `json:"bearing"`
}
