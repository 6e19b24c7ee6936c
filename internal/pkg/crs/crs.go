// Package crs converts positions between the canonical geographic system
// (WGS 84 lon/lat) and a config-defined set of named projected systems.
//
// Conversion is fail-open: an unknown system key or a projection failure
// produces a Warning and returns the input position unchanged. A single bad
// configuration must never take down geometry flows; the warning type makes
// the "warn but continue" policy visible in the signature.
package crs

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/wroge/wgs84"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// Projected system rounding: 2 decimals is centimeter precision in meters;
// geographic rounding at 6 decimals is ~0.11 m at the equator. Rounding is
// applied once at the output boundary, never mid-pipeline.
const (
	projectedDecimals  = 2
	geographicDecimals = 6
)

// HelmertShift holds seven-parameter datum shift values toward WGS 84.
type HelmertShift struct {
	Tx float64 `mapstructure:"tx"`
	Ty float64 `mapstructure:"ty"`
	Tz float64 `mapstructure:"tz"`
	Rx float64 `mapstructure:"rx"`
	Ry float64 `mapstructure:"ry"`
	Rz float64 `mapstructure:"rz"`
	Ds float64 `mapstructure:"ds"`
}

// Definition describes one projected reference system. Adding a system is a
// config change only; no code needs to know about individual systems.
type Definition struct {
	Authority int     `mapstructure:"authority"` // EPSG code, informational
	Family    string  `mapstructure:"family"`    // utm | transverse_mercator | web_mercator
	Zone      float64 `mapstructure:"zone"`
	Northern  bool    `mapstructure:"northern"`

	// Transverse Mercator parameters, used when Family is transverse_mercator.
	CentralMeridian float64 `mapstructure:"central_meridian"`
	LatitudeOrigin  float64 `mapstructure:"latitude_origin"`
	Scale           float64 `mapstructure:"scale"`
	FalseEasting    float64 `mapstructure:"false_easting"`
	FalseNorthing   float64 `mapstructure:"false_northing"`

	Helmert *HelmertShift `mapstructure:"helmert"`
}

// Warning reports a recovered conversion problem. The position travelled
// through unchanged.
type Warning struct {
	SystemKey string
	Reason    string
}

func (w *Warning) String() string {
	return fmt.Sprintf("crs %q: %s", w.SystemKey, w.Reason)
}

// Registry resolves system keys to projections. Systems are built lazily on
// first use and cached.
type Registry struct {
	defs map[string]Definition

	mu    sync.RWMutex
	built map[string]wgs84.CoordinateReferenceSystem
}

// NewRegistry creates a registry over a definition table (system key →
// Definition), typically loaded from config.
func NewRegistry(defs map[string]Definition) *Registry {
	return &Registry{
		defs:  defs,
		built: make(map[string]wgs84.CoordinateReferenceSystem),
	}
}

// Keys returns the configured system keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	return keys
}

// ToCanonical converts a position from the named system into geographic
// lon/lat, rounded to 6 decimals. Unknown keys and projection failures warn
// and pass the input through.
func (r *Registry) ToCanonical(p domain.Position, sourceKey string) (domain.Position, *Warning) {
	if sourceKey == "" || sourceKey == domain.SystemGeographic {
		p.System = domain.SystemGeographic
		return p, nil
	}

	sys, ok := r.system(sourceKey)
	if !ok {
		return p, warn(sourceKey, "unknown reference system")
	}

	lon, lat, _ := wgs84.Transform(sys, wgs84.LonLat()).Round(geographicDecimals)(p.X, p.Y, 0)
	if !finite(lon, lat) {
		return p, warn(sourceKey, "conversion produced non-finite result")
	}
	return domain.Geographic(lon, lat), nil
}

// FromCanonical converts a geographic position into the named projected
// system, rounded to 2 decimals. Unknown keys and projection failures warn
// and pass the input through.
func (r *Registry) FromCanonical(p domain.Position, targetKey string) (domain.Position, *Warning) {
	if targetKey == "" || targetKey == domain.SystemGeographic {
		p.System = domain.SystemGeographic
		return p, nil
	}

	sys, ok := r.system(targetKey)
	if !ok {
		return p, warn(targetKey, "unknown reference system")
	}

	east, north, _ := wgs84.Transform(wgs84.LonLat(), sys).Round(projectedDecimals)(p.X, p.Y, 0)
	if !finite(east, north) {
		return p, warn(targetKey, "conversion produced non-finite result")
	}
	return domain.Position{X: east, Y: north, System: targetKey}, nil
}

// LooksProjected heuristically classifies a raw coordinate pair: values
// outside the geographic range must be projected. Best-effort auto-detection
// only, never a source of truth for persisted data.
func LooksProjected(x, y float64) bool {
	return math.Abs(x) > 180 || math.Abs(y) > 90
}

func (r *Registry) system(key string) (wgs84.CoordinateReferenceSystem, bool) {
	r.mu.RLock()
	sys, ok := r.built[key]
	r.mu.RUnlock()
	if ok {
		return sys, true
	}

	def, ok := r.defs[key]
	if !ok {
		return nil, false
	}

	sys, ok = build(def)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	r.built[key] = sys
	r.mu.Unlock()
	return sys, true
}

func build(def Definition) (wgs84.CoordinateReferenceSystem, bool) {
	switch def.Family {
	case "utm":
		return wgs84.UTM(def.Zone, def.Northern), true
	case "web_mercator":
		return wgs84.WebMercator(), true
	case "transverse_mercator":
		sp := wgs84.GRS80{}
		datum := wgs84.Datum{Spheroid: sp}
		if h := def.Helmert; h != nil {
			datum = wgs84.Helmert(sp.A(), sp.Fi(), h.Tx, h.Ty, h.Tz, h.Rx, h.Ry, h.Rz, h.Ds)
		}
		return datum.TransverseMercator(
			def.CentralMeridian, def.LatitudeOrigin, def.Scale,
			def.FalseEasting, def.FalseNorthing,
		), true
	default:
		return nil, false
	}
}

func warn(key, reason string) *Warning {
	w := &Warning{SystemKey: key, Reason: reason}
	slog.Warn("crs conversion passthrough", "system", key, "reason", reason)
	return w
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
