package geometry

import (
	"fmt"
	"math"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/ray"
	"lightpath/vmath/vec3"
)

// Box is an axis-aligned solid box.
type Box struct {
	Spans [3]ray.Span
}

func (b *Box) GetAABox() aabox.AABox {
	return aabox.AABox{
		X: b.Spans[0],
		Y: b.Spans[1],
		Z: b.Spans[2],
	}
}

// slabs intersects the ray with the box's three slabs.  It returns the
// parameter range inside the box, and the outward normals of the faces crossed
// at each end of that range.
func (b *Box) slabs(r ray.Ray) (ray.Span, vec3.T, vec3.T, bool) {
	cover := ray.Span{Lo: math.Inf(-1), Hi: math.Inf(1)}
	entryAxis := vec3.T{}
	exitAxis := vec3.T{}

	for i := 0; i < 3; i++ {
		if r.Slope[i] == 0 {
			if r.Point[i] < b.Spans[i].Lo || r.Point[i] > b.Spans[i].Hi {
				return ray.NaNSpan(), vec3.T{}, vec3.T{}, false
			}
			continue
		}

		cur := ray.Span{
			Lo: (b.Spans[i].Lo - r.Point[i]) / r.Slope[i],
			Hi: (b.Spans[i].Hi - r.Point[i]) / r.Slope[i],
		}

		entryComponent := -1.0
		if cur.Hi < cur.Lo {
			cur.Hi, cur.Lo = cur.Lo, cur.Hi
			entryComponent = 1.0
		}

		if !ray.SpanOverlaps(cover, cur) {
			return ray.NaNSpan(), vec3.T{}, vec3.T{}, false
		}

		if cover.Lo < cur.Lo {
			cover.Lo = cur.Lo
			entryAxis = vec3.T{}
			entryAxis[i] = entryComponent
		}

		if cur.Hi < cover.Hi {
			cover.Hi = cur.Hi
			exitAxis = vec3.T{}
			exitAxis[i] = -entryComponent
		}
	}

	return cover, entryAxis, exitAxis, true
}

func (b *Box) RayInto(query ray.Segment) contact.Contact {
	cover, entryAxis, _, ok := b.slabs(query.TheRay)
	if !ok || !query.TheSegment.Contains(cover.Lo) {
		return contact.ContactNaN()
	}
	return contact.Oriented(cover.Lo, query.TheRay.Eval(cover.Lo), entryAxis, query.TheRay.Slope)
}

func (b *Box) RayExit(query ray.Segment) contact.Contact {
	cover, _, exitAxis, ok := b.slabs(query.TheRay)
	if !ok || !query.TheSegment.Contains(cover.Hi) {
		return contact.ContactNaN()
	}
	return contact.Oriented(cover.Hi, query.TheRay.Eval(cover.Hi), exitAxis, query.TheRay.Slope)
}

// NormalAt picks the face nearest to p.
func (b *Box) NormalAt(p vec3.T) (vec3.T, error) {
	if !p.IsFinite() {
		return vec3.T{}, fmt.Errorf("%w: point %v", ErrDegenerateGeometry, p)
	}
	best := math.Inf(1)
	n := vec3.T{}
	for i := 0; i < 3; i++ {
		if d := math.Abs(p[i] - b.Spans[i].Lo); d < best {
			best = d
			n = vec3.T{}
			n[i] = -1
		}
		if d := math.Abs(p[i] - b.Spans[i].Hi); d < best {
			best = d
			n = vec3.T{}
			n[i] = 1
		}
	}
	return n, nil
}

func (b *Box) Validate() error {
	for i := 0; i < 3; i++ {
		if !(b.Spans[i].Lo < b.Spans[i].Hi) || !b.Spans[i].IsFinite() {
			return fmt.Errorf("%w: box span %d is %v", ErrDegenerateGeometry, i, b.Spans[i])
		}
	}
	return nil
}
