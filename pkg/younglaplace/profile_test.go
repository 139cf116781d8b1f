package younglaplace

import (
	"math"
	"testing"
)

// TestProfileZeroBondIsUnitCircle verifies the Bond-zero solution, which is
// a sphere of apex radius: r(s) = sin(s), z(s) = 1 - cos(s)
func TestProfileZeroBondIsUnitCircle(t *testing.T) {
	p := IntegrateProfile(0, math.Pi, 0)

	for _, s := range []float64{0, 0.5, 1.0, 2.0, 3.0} {
		r, z := p.Point(s)
		wantR := math.Sin(s)
		wantZ := 1 - math.Cos(s)

		if math.Abs(r-wantR) > 1e-3 {
			t.Errorf("r(%f) = %f, expected %f", s, r, wantR)
		}
		if math.Abs(z-wantZ) > 1e-3 {
			t.Errorf("z(%f) = %f, expected %f", s, z, wantZ)
		}
	}
}

// TestProfileApexConditions verifies the apex boundary conditions
func TestProfileApexConditions(t *testing.T) {
	p := IntegrateProfile(0.2, 4.0, 0)

	r, z := p.Point(0)
	if math.Abs(r) > 1e-12 || math.Abs(z) > 1e-12 {
		t.Errorf("Apex should be at origin, got (%g, %g)", r, z)
	}
	if phi := p.Angle(0); math.Abs(phi) > 1e-12 {
		t.Errorf("Apex tangent angle should be 0, got %g", phi)
	}
}

// TestProfileDomain verifies the requested arclength extent is honoured
func TestProfileDomain(t *testing.T) {
	p := IntegrateProfile(0.3, 2.5, 0)
	if p.Domain() != 2.5 {
		t.Errorf("Expected domain 2.5, got %f", p.Domain())
	}

	// Requests beyond the cap are clamped.
	p = IntegrateProfile(0.3, 100, 0)
	if p.Domain() != maxProfileDomain {
		t.Errorf("Expected domain capped at %f, got %f", maxProfileDomain, p.Domain())
	}
}

// TestProfileVolumeIntegralSphere verifies the volume integral against the
// analytic sphere volume 4*pi/3 at Bond zero over a half period
func TestProfileVolumeIntegralSphere(t *testing.T) {
	p := IntegrateProfile(0, math.Pi, 0)

	got := p.VolumeIntegral()
	want := 4 * math.Pi / 3
	if math.Abs(got-want) > 1e-2 {
		t.Errorf("Volume integral = %f, expected %f", got, want)
	}
}

// TestProfileSurfaceIntegralSphere verifies the surface integral against
// the analytic sphere area 4*pi at Bond zero
func TestProfileSurfaceIntegralSphere(t *testing.T) {
	p := IntegrateProfile(0, math.Pi, 0)

	got := p.SurfaceIntegral()
	want := 4 * math.Pi
	if math.Abs(got-want) > 1e-2 {
		t.Errorf("Surface integral = %f, expected %f", got, want)
	}
}

// TestProfileBondElongates verifies that gravity (positive Bond number)
// elongates the profile relative to the sphere
func TestProfileBondElongates(t *testing.T) {
	sphere := IntegrateProfile(0, 3.0, 0)
	heavy := IntegrateProfile(0.4, 3.0, 0)

	_, zSphere := sphere.Point(3.0)
	_, zHeavy := heavy.Point(3.0)

	if zHeavy <= zSphere {
		t.Errorf("Expected elongated profile at Bond 0.4: z=%f vs sphere z=%f", zHeavy, zSphere)
	}
}

// TestProfilePointClamped verifies out-of-domain evaluation clamps rather
// than extrapolating
func TestProfilePointClamped(t *testing.T) {
	p := IntegrateProfile(0.1, 2.0, 0)

	rEnd, zEnd := p.Point(2.0)
	rOver, zOver := p.Point(5.0)
	if rEnd != rOver || zEnd != zOver {
		t.Errorf("Evaluation past the domain should clamp to the endpoint")
	}

	rStart, zStart := p.Point(0)
	rUnder, zUnder := p.Point(-1)
	if rStart != rUnder || zStart != zUnder {
		t.Errorf("Evaluation before the domain should clamp to the apex")
	}
}
