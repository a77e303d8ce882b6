package geometry

import (
	"fmt"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/ray"
	"lightpath/vmath/vec3"
)

// Plane is an unbounded plane through Point.
type Plane struct {
	Point  vec3.T
	Normal vec3.T
}

func (p *Plane) GetAABox() aabox.AABox {
	return aabox.Everything()
}

func (p *Plane) RayInto(query ray.Segment) contact.Contact {
	t, ok := planeCrossing(p.Point, p.Normal, query.TheRay)
	if !ok || !query.TheSegment.Contains(t) {
		return contact.ContactNaN()
	}
	return contact.Oriented(t, query.TheRay.Eval(t), vec3.Normalize(p.Normal), query.TheRay.Slope)
}

func (p *Plane) RayExit(query ray.Segment) contact.Contact {
	return contact.ContactNaN()
}

func (p *Plane) NormalAt(vec3.T) (vec3.T, error) {
	return unitNormal(p.Normal)
}

func (p *Plane) Validate() error {
	_, err := unitNormal(p.Normal)
	return err
}

// Disc is a flat circular surface, the usual shape of an idealized lens.
type Disc struct {
	Center vec3.T
	Normal vec3.T
	Radius float64
}

func (d *Disc) GetAABox() aabox.AABox {
	return discExtent(d.Center, vec3.Normalize(d.Normal), d.Radius).Pad(flatPad)
}

func (d *Disc) RayInto(query ray.Segment) contact.Contact {
	t, ok := planeCrossing(d.Center, d.Normal, query.TheRay)
	if !ok || !query.TheSegment.Contains(t) {
		return contact.ContactNaN()
	}
	p := query.TheRay.Eval(t)
	if vec3.Distance(p, d.Center) > d.Radius {
		return contact.ContactNaN()
	}
	return contact.Oriented(t, p, vec3.Normalize(d.Normal), query.TheRay.Slope)
}

func (d *Disc) RayExit(query ray.Segment) contact.Contact {
	return contact.ContactNaN()
}

func (d *Disc) NormalAt(vec3.T) (vec3.T, error) {
	return unitNormal(d.Normal)
}

func (d *Disc) Validate() error {
	if !(d.Radius > 0) {
		return fmt.Errorf("%w: disc radius %v", ErrDegenerateGeometry, d.Radius)
	}
	_, err := unitNormal(d.Normal)
	return err
}

func (d *Disc) AxisFrame() (vec3.T, vec3.T) {
	return d.Center, vec3.Normalize(d.Normal)
}

// Quad is the parallelogram spanned by U and V from Corner.  Its outward side
// is the one U x V points to.
type Quad struct {
	Corner vec3.T
	U, V   vec3.T
}

func (q *Quad) GetAABox() aabox.AABox {
	return aabox.FromPoints(
		q.Corner,
		vec3.AddVV(q.Corner, q.U),
		vec3.AddVV(q.Corner, q.V),
		vec3.AddVV(q.Corner, vec3.AddVV(q.U, q.V)),
	).Pad(flatPad)
}

func (q *Quad) RayInto(query ray.Segment) contact.Contact {
	n := vec3.CProd(q.U, q.V)
	t, ok := planeCrossing(q.Corner, n, query.TheRay)
	if !ok || !query.TheSegment.Contains(t) {
		return contact.ContactNaN()
	}

	p := query.TheRay.Eval(t)
	w := vec3.DivVS(n, vec3.IProd(n, n))
	planar := vec3.SubVV(p, q.Corner)
	alpha := vec3.IProd(w, vec3.CProd(planar, q.V))
	beta := vec3.IProd(w, vec3.CProd(q.U, planar))
	if alpha < 0 || alpha > 1 || beta < 0 || beta > 1 {
		return contact.ContactNaN()
	}

	return contact.Oriented(t, p, vec3.Normalize(n), query.TheRay.Slope)
}

func (q *Quad) RayExit(query ray.Segment) contact.Contact {
	return contact.ContactNaN()
}

func (q *Quad) NormalAt(vec3.T) (vec3.T, error) {
	return unitNormal(vec3.CProd(q.U, q.V))
}

func (q *Quad) Validate() error {
	_, err := unitNormal(vec3.CProd(q.U, q.V))
	return err
}
