package crs_test

import (
	"math"
	"testing"

	"github.com/aldalur/plantmap/internal/core/domain"
	"github.com/aldalur/plantmap/internal/pkg/crs"
)

func testRegistry() *crs.Registry {
	return crs.NewRegistry(map[string]crs.Definition{
		"utm32n": {Authority: 32632, Family: "utm", Zone: 32, Northern: true},
		"etrs89tm32": {
			Authority: 25832, Family: "transverse_mercator",
			CentralMeridian: 9, Scale: 0.9996, FalseEasting: 500000,
		},
		"gk4plain": {
			Authority: 31468, Family: "transverse_mercator",
			CentralMeridian: 12, Scale: 1, FalseEasting: 4500000,
		},
		"gk4shift": {
			Authority: 31468, Family: "transverse_mercator",
			CentralMeridian: 12, Scale: 1, FalseEasting: 4500000,
			Helmert: &crs.HelmertShift{
				Tx: 598.1, Ty: 73.7, Tz: 418.2,
				Rx: 0.202, Ry: 0.045, Rz: -2.455, Ds: 6.7,
			},
		},
		"broken": {Authority: 0, Family: "no_such_family"},
	})
}

func TestRoundTrip_UTM(t *testing.T) {
	reg := testRegistry()
	orig := domain.Geographic(7.4951, 9.0579)

	projected, w := reg.FromCanonical(orig, "utm32n")
	if w != nil {
		t.Fatalf("unexpected warning: %v", w)
	}
	if projected.System != "utm32n" {
		t.Errorf("expected system utm32n, got %q", projected.System)
	}
	if !crs.LooksProjected(projected.X, projected.Y) {
		t.Errorf("projected coordinates look geographic: %v", projected)
	}

	back, w := reg.ToCanonical(projected, "utm32n")
	if w != nil {
		t.Fatalf("unexpected warning: %v", w)
	}

	const tol = 1.1e-6 // bounded by the 6-decimal output rounding
	if math.Abs(back.X-orig.X) > tol || math.Abs(back.Y-orig.Y) > tol {
		t.Errorf("round trip drifted: %v -> %v", orig, back)
	}
}

func TestRoundTrip_TransverseMercator(t *testing.T) {
	reg := testRegistry()
	orig := domain.Geographic(9.7381, 52.3745)

	const tol = 1.1e-6
	for _, key := range []string{"etrs89tm32", "gk4shift"} {
		projected, w := reg.FromCanonical(orig, key)
		if w != nil {
			t.Fatalf("%s: unexpected warning: %v", key, w)
		}
		if projected.System != key {
			t.Errorf("%s: expected system tag %q, got %q", key, key, projected.System)
		}
		if !crs.LooksProjected(projected.X, projected.Y) {
			t.Errorf("%s: projected coordinates look geographic: %v", key, projected)
		}

		back, w := reg.ToCanonical(projected, key)
		if w != nil {
			t.Fatalf("%s: unexpected warning: %v", key, w)
		}
		if math.Abs(back.X-orig.X) > tol || math.Abs(back.Y-orig.Y) > tol {
			t.Errorf("%s: round trip drifted: %v -> %v", key, orig, back)
		}
	}

	// Same projection parameters with and without the datum shift must not
	// land on the same point.
	plain, _ := reg.FromCanonical(orig, "gk4plain")
	shifted, _ := reg.FromCanonical(orig, "gk4shift")
	if math.Abs(shifted.X-plain.X) < 1 && math.Abs(shifted.Y-plain.Y) < 1 {
		t.Errorf("helmert shift had no effect: plain %v, shifted %v", plain, shifted)
	}
}

func TestToCanonical_GeographicIdentity(t *testing.T) {
	reg := testRegistry()
	p := domain.Position{X: -2.935, Y: 43.263}

	out, w := reg.ToCanonical(p, "")
	if w != nil {
		t.Fatalf("unexpected warning: %v", w)
	}
	if out.X != p.X || out.Y != p.Y {
		t.Errorf("identity conversion changed coordinates: %v", out)
	}
	if out.System != domain.SystemGeographic {
		t.Errorf("expected canonical system tag, got %q", out.System)
	}
}

func TestUnknownSystem_Passthrough(t *testing.T) {
	reg := testRegistry()
	p := domain.Geographic(1.5, 2.5)

	out, w := reg.ToCanonical(p, "mars2000")
	if w == nil {
		t.Fatal("expected a warning for unknown system")
	}
	if out.X != p.X || out.Y != p.Y {
		t.Errorf("passthrough changed coordinates: %v", out)
	}

	out, w = reg.FromCanonical(p, "mars2000")
	if w == nil {
		t.Fatal("expected a warning for unknown system")
	}
	if out.X != p.X || out.Y != p.Y {
		t.Errorf("passthrough changed coordinates: %v", out)
	}
}

func TestBrokenDefinition_Passthrough(t *testing.T) {
	reg := testRegistry()
	p := domain.Geographic(1, 1)

	out, w := reg.FromCanonical(p, "broken")
	if w == nil {
		t.Fatal("expected a warning for unbuildable system")
	}
	if out.X != p.X || out.Y != p.Y {
		t.Errorf("passthrough changed coordinates: %v", out)
	}
}

func TestFromCanonical_Rounding(t *testing.T) {
	reg := testRegistry()
	projected, w := reg.FromCanonical(domain.Geographic(7.4951, 9.0579), "utm32n")
	if w != nil {
		t.Fatalf("unexpected warning: %v", w)
	}
	// Centimeter precision: multiplying by 100 must give an integer value.
	for _, v := range []float64{projected.X, projected.Y} {
		scaled := v * 100
		if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
			t.Errorf("coordinate %v not rounded to 2 decimals", v)
		}
	}
}

func TestLooksProjected(t *testing.T) {
	tests := []struct {
		x, y float64
		want bool
	}{
		{7.4951, 9.0579, false},
		{-179.9, 89.9, false},
		{180.1, 0, true},
		{0, 90.5, true},
		{500000, 1002000, true},
		{-2.935, 43.263, false},
	}
	for _, tt := range tests {
		if got := crs.LooksProjected(tt.x, tt.y); got != tt.want {
			t.Errorf("LooksProjected(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
