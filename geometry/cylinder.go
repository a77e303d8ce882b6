package geometry

import (
	"fmt"
	"math"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/ray"
	"lightpath/vmath/vec3"
)

// Cylinder is the open lateral surface of a right circular cylinder, running
// Height along Axis from Base.
type Cylinder struct {
	Base   vec3.T
	Axis   vec3.T
	Radius float64
	Height float64
}

func (c *Cylinder) GetAABox() aabox.AABox {
	axis := vec3.Normalize(c.Axis)
	return aabox.MinContainingAABox(
		discExtent(c.Base, axis, c.Radius),
		discExtent(vec3.AddVV(c.Base, vec3.MulVS(axis, c.Height)), axis, c.Radius),
	)
}

func (c *Cylinder) RayInto(query ray.Segment) contact.Contact {
	axis := vec3.Normalize(c.Axis)
	r := query.TheRay
	oc := vec3.SubVV(r.Point, c.Base)

	// Work in the plane orthogonal to the axis.
	dp := vec3.SubVV(r.Slope, vec3.MulVS(axis, vec3.IProd(r.Slope, axis)))
	op := vec3.SubVV(oc, vec3.MulVS(axis, vec3.IProd(oc, axis)))

	a := vec3.IProd(dp, dp)
	if a < 1e-12 {
		return contact.ContactNaN()
	}
	b := vec3.IProd(dp, op)
	cc := vec3.IProd(op, op) - c.Radius*c.Radius
	disc := b*b - a*cc
	if disc < 0 {
		return contact.ContactNaN()
	}
	sq := math.Sqrt(disc)

	for _, t := range []float64{(-b - sq) / a, (-b + sq) / a} {
		if !query.TheSegment.Contains(t) {
			continue
		}
		h := vec3.IProd(vec3.AddVV(oc, vec3.MulVS(r.Slope, t)), axis)
		if h < 0 || h > c.Height {
			continue
		}
		p := r.Eval(t)
		n := vec3.Normalize(vec3.AddVV(op, vec3.MulVS(dp, t)))
		return contact.Oriented(t, p, n, r.Slope)
	}
	return contact.ContactNaN()
}

func (c *Cylinder) RayExit(query ray.Segment) contact.Contact {
	return contact.ContactNaN()
}

func (c *Cylinder) NormalAt(p vec3.T) (vec3.T, error) {
	axis := vec3.Normalize(c.Axis)
	rel := vec3.SubVV(p, c.Base)
	return unitNormal(vec3.SubVV(rel, vec3.MulVS(axis, vec3.IProd(rel, axis))))
}

func (c *Cylinder) Validate() error {
	if !(c.Radius > 0) || !(c.Height > 0) {
		return fmt.Errorf("%w: cylinder radius %v height %v", ErrDegenerateGeometry, c.Radius, c.Height)
	}
	_, err := unitNormal(c.Axis)
	return err
}

func (c *Cylinder) AxisFrame() (vec3.T, vec3.T) {
	axis := vec3.Normalize(c.Axis)
	return vec3.AddVV(c.Base, vec3.MulVS(axis, c.Height/2)), axis
}
