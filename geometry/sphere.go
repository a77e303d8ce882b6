package geometry

import (
	"fmt"
	"math"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/ray"
	"lightpath/vmath/vec3"
)

type Sphere struct {
	Center vec3.T
	Radius float64
}

func (s *Sphere) GetAABox() aabox.AABox {
	return aabox.FromPoints(
		vec3.SubVV(s.Center, vec3.T{s.Radius, s.Radius, s.Radius}),
		vec3.AddVV(s.Center, vec3.T{s.Radius, s.Radius, s.Radius}),
	)
}

// roots returns the parameters where the ray crosses the sphere, in order.
func (s *Sphere) roots(r ray.Ray) (float64, float64, bool) {
	oc := vec3.SubVV(r.Point, s.Center)
	b := vec3.IProd(r.Slope, oc)
	c := vec3.IProd(oc, oc) - s.Radius*s.Radius

	disc := b*b - c
	if disc < 0 {
		return 0, 0, false
	}
	sq := math.Sqrt(disc)
	return -b - sq, -b + sq, true
}

func (s *Sphere) contactAt(t float64, r ray.Ray) contact.Contact {
	p := r.Eval(t)
	return contact.Oriented(t, p, vec3.Normalize(vec3.SubVV(p, s.Center)), r.Slope)
}

func (s *Sphere) RayInto(query ray.Segment) contact.Contact {
	tMin, _, ok := s.roots(query.TheRay)
	if !ok || !query.TheSegment.Contains(tMin) {
		return contact.ContactNaN()
	}
	return s.contactAt(tMin, query.TheRay)
}

func (s *Sphere) RayExit(query ray.Segment) contact.Contact {
	_, tMax, ok := s.roots(query.TheRay)
	if !ok || !query.TheSegment.Contains(tMax) {
		return contact.ContactNaN()
	}
	return s.contactAt(tMax, query.TheRay)
}

func (s *Sphere) NormalAt(p vec3.T) (vec3.T, error) {
	return unitNormal(vec3.SubVV(p, s.Center))
}

func (s *Sphere) Validate() error {
	if !(s.Radius > 0) || math.IsInf(s.Radius, 0) {
		return fmt.Errorf("%w: sphere radius %v", ErrDegenerateGeometry, s.Radius)
	}
	return nil
}
