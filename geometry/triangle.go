package geometry

import (
	"fmt"
	"math"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/ray"
	"lightpath/vmath/vec3"
)

// Triangle is a flat triangle.  Counter-clockwise winding (A, B, C) seen from
// outside defines the outward normal.
type Triangle struct {
	A, B, C vec3.T
}

func (tri *Triangle) normal() vec3.T {
	return vec3.CProd(vec3.SubVV(tri.B, tri.A), vec3.SubVV(tri.C, tri.A))
}

func (tri *Triangle) GetAABox() aabox.AABox {
	return aabox.FromPoints(tri.A, tri.B, tri.C).Pad(flatPad)
}

// crossing is the Moller-Trumbore ray/triangle test.
func (tri *Triangle) crossing(r ray.Ray) (float64, bool) {
	e1 := vec3.SubVV(tri.B, tri.A)
	e2 := vec3.SubVV(tri.C, tri.A)

	h := vec3.CProd(r.Slope, e2)
	a := vec3.IProd(e1, h)
	if math.Abs(a) < 1e-12 {
		return 0, false
	}

	f := 1 / a
	s := vec3.SubVV(r.Point, tri.A)
	u := f * vec3.IProd(s, h)
	if u < 0 || u > 1 {
		return 0, false
	}

	q := vec3.CProd(s, e1)
	v := f * vec3.IProd(r.Slope, q)
	if v < 0 || u+v > 1 {
		return 0, false
	}

	return f * vec3.IProd(e2, q), true
}

func (tri *Triangle) RayInto(query ray.Segment) contact.Contact {
	t, ok := tri.crossing(query.TheRay)
	if !ok || !query.TheSegment.Contains(t) {
		return contact.ContactNaN()
	}
	return contact.Oriented(t, query.TheRay.Eval(t), vec3.Normalize(tri.normal()), query.TheRay.Slope)
}

func (tri *Triangle) RayExit(query ray.Segment) contact.Contact {
	return contact.ContactNaN()
}

func (tri *Triangle) NormalAt(vec3.T) (vec3.T, error) {
	return unitNormal(tri.normal())
}

func (tri *Triangle) Validate() error {
	if _, err := unitNormal(tri.normal()); err != nil {
		return fmt.Errorf("%w: triangle %v has no area", ErrDegenerateGeometry, *tri)
	}
	return nil
}

// contains reports whether p lies within tol of the triangle.
func (tri *Triangle) contains(p vec3.T, tol float64) bool {
	n := tri.normal()
	nn := vec3.IProd(n, n)
	if nn == 0 {
		return false
	}
	if math.Abs(vec3.IProd(vec3.SubVV(p, tri.A), n))/math.Sqrt(nn) > tol {
		return false
	}
	w := vec3.DivVS(n, nn)
	planar := vec3.SubVV(p, tri.A)
	alpha := vec3.IProd(w, vec3.CProd(planar, vec3.SubVV(tri.C, tri.A)))
	beta := vec3.IProd(w, vec3.CProd(vec3.SubVV(tri.B, tri.A), planar))
	return alpha >= -tol && beta >= -tol && alpha+beta <= 1+tol
}

// Mesh is a surface made of triangles, used for arbitrary boundary geometry
// such as a tessellated lens body.
type Mesh struct {
	Triangles []Triangle

	// Tolerance is the distance within which NormalAt accepts a point as being
	// on a face.  Zero means 1e-6.
	Tolerance float64
}

func (m *Mesh) GetAABox() aabox.AABox {
	box := aabox.AccumZeroAABox()
	for i := range m.Triangles {
		box = aabox.MinContainingAABox(box, m.Triangles[i].GetAABox())
	}
	return box
}

func (m *Mesh) RayInto(query ray.Segment) contact.Contact {
	best := contact.ContactNaN()
	for i := range m.Triangles {
		c := m.Triangles[i].RayInto(query)
		if c.IsNaN() {
			continue
		}
		best = c
		query.TheSegment.Hi = c.T
	}
	return best
}

func (m *Mesh) RayExit(query ray.Segment) contact.Contact {
	return contact.ContactNaN()
}

func (m *Mesh) NormalAt(p vec3.T) (vec3.T, error) {
	tol := m.Tolerance
	if tol == 0 {
		tol = 1e-6
	}
	for i := range m.Triangles {
		if m.Triangles[i].contains(p, tol) {
			return m.Triangles[i].NormalAt(p)
		}
	}
	return vec3.T{}, fmt.Errorf("%w: point %v is not on the mesh", ErrDegenerateGeometry, p)
}

func (m *Mesh) Validate() error {
	if len(m.Triangles) == 0 {
		return fmt.Errorf("%w: empty mesh", ErrDegenerateGeometry)
	}
	for i := range m.Triangles {
		if err := m.Triangles[i].Validate(); err != nil {
			return fmt.Errorf("while checking mesh face %d: %w", i, err)
		}
	}
	return nil
}
