// Package geometry holds the boundary shapes that optical surfaces are made
// of, and the per-shape ray queries the intersection engine is built on.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/ray"
	"lightpath/vmath/vec3"
)

// ErrDegenerateGeometry is returned when a shape cannot produce a usable
// intersection or normal at some point.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// flatPad gives zero-thickness shapes a bounding box the slab test can hit.
const flatPad = 1e-7

// Geometry is a boundary shape.
//
// RayInto returns the first crossing in the query segment where the ray enters
// a closed shape, or any crossing of an open shape.  RayExit returns the first
// crossing where the ray leaves a closed shape; open shapes always return a NaN
// contact from it.  Contacts carry normals oriented against the ray.
type Geometry interface {
	GetAABox() aabox.AABox
	RayInto(query ray.Segment) contact.Contact
	RayExit(query ray.Segment) contact.Contact

	// NormalAt returns the outward unit normal at a point on the surface.
	NormalAt(p vec3.T) (vec3.T, error)

	// Validate checks the shape's parameters.
	Validate() error
}

// Axial is implemented by shapes with a natural center and axis, which idealized
// lenses use as their optical axis.
type Axial interface {
	AxisFrame() (center, axis vec3.T)
}

// Check verifies that a contact produced by a shape is usable.
func Check(c contact.Contact) error {
	if math.IsNaN(c.T) || math.IsInf(c.T, 0) || !c.P.IsFinite() || !c.N.IsFinite() {
		return fmt.Errorf("%w: non-finite contact at t=%v p=%v n=%v", ErrDegenerateGeometry, c.T, c.P, c.N)
	}
	if math.Abs(c.N.Norm()-1) > 1e-6 {
		return fmt.Errorf("%w: normal %v is not unit length", ErrDegenerateGeometry, c.N)
	}
	return nil
}

func unitNormal(n vec3.T) (vec3.T, error) {
	l := n.Norm()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return vec3.T{}, fmt.Errorf("%w: normal %v has no direction", ErrDegenerateGeometry, n)
	}
	return vec3.DivVS(n, l), nil
}

// planeCrossing finds where the ray crosses the plane through point with
// normal n.
func planeCrossing(point, n vec3.T, r ray.Ray) (float64, bool) {
	denom := vec3.IProd(n, r.Slope)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	return vec3.IProd(n, vec3.SubVV(point, r.Point)) / denom, true
}

// discExtent is the bounding box of a disc with the given center, unit normal,
// and radius.
func discExtent(center, n vec3.T, radius float64) aabox.AABox {
	box := aabox.AccumZeroAABox()
	for i := 0; i < 3; i++ {
		e := radius * math.Sqrt(math.Max(0, 1-n[i]*n[i]))
		lo, hi := center, center
		lo[i] -= e
		hi[i] += e
		box = aabox.GrowAABoxToPoint(box, lo)
		box = aabox.GrowAABoxToPoint(box, hi)
	}
	return box
}
