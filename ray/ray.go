package ray

import (
	"fmt"
	"math"

	"lightpath/vmath/vec3"
)

type Span struct {
	Lo, Hi float64
}

func NaNSpan() Span {
	return Span{math.NaN(), math.NaN()}
}

func SpanOverlaps(a, b Span) bool {
	return !(a.Lo > b.Hi || a.Hi < b.Lo)
}

func MinContainingSpan(a, b Span) Span {
	min := a.Lo
	if b.Lo < a.Lo {
		min = b.Lo
	}

	max := a.Hi
	if b.Hi > a.Hi {
		max = b.Hi
	}

	return Span{min, max}
}

func (s Span) Contains(t float64) bool {
	return s.Lo <= t && t <= s.Hi
}

func (s Span) IsFinite() bool {
	return !math.IsInf(s.Lo, 0) && !math.IsInf(s.Hi, 0)
}

func (s Span) IsNaN() bool {
	return math.IsNaN(s.Lo) || math.IsNaN(s.Hi)
}

// Ray is a single light ray in flight.
type Ray struct {
	// ID identifies the ray (and every successor spawned from it) within a
	// run.
	ID string

	Point vec3.T
	Slope vec3.T

	// Wavelength in nanometers.  Zero means the ray is not tagged with a
	// wavelength.
	Wavelength float64

	Power bool

	BouncesLeft int

	// MaxLength caps the total distance the ray may travel, counting all
	// previous segments.
	MaxLength float64
	Traveled  float64

	// HideFirstPart marks the first segment of the ray's path as hidden for
	// display.  It never changes the geometry of the path.
	HideFirstPart bool
}

func (r *Ray) Eval(t float64) vec3.T {
	return vec3.T{
		r.Point[0] + t*r.Slope[0],
		r.Point[1] + t*r.Slope[1],
		r.Point[2] + t*r.Slope[2],
	}
}

// Remaining is the distance the ray may still travel.
func (r *Ray) Remaining() float64 {
	return r.MaxLength - r.Traveled
}

// Validate checks that the ray is usable for tracing.
func (r *Ray) Validate() error {
	if !r.Point.IsFinite() {
		return fmt.Errorf("ray %q has non-finite origin %v", r.ID, r.Point)
	}
	if !r.Slope.IsFinite() || math.Abs(r.Slope.Norm()-1) > 1e-6 {
		return fmt.Errorf("ray %q has non-unit direction %v", r.ID, r.Slope)
	}
	if r.BouncesLeft < 0 {
		return fmt.Errorf("ray %q has negative bounce budget %d", r.ID, r.BouncesLeft)
	}
	if math.IsNaN(r.MaxLength) || math.IsInf(r.MaxLength, 0) || math.IsNaN(r.Traveled) || math.IsInf(r.Traveled, 0) {
		return fmt.Errorf("ray %q has non-finite length bookkeeping", r.ID)
	}
	return nil
}

// Segment is a query for intersections along the ray, restricted to the
// parameter range TheSegment.
type Segment struct {
	TheRay     Ray
	TheSegment Span
}
