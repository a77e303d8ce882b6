package aabox

import (
	"math"

	"lightpath/ray"
	"lightpath/vmath/vec3"
)

type AABox struct {
	X, Y, Z ray.Span
}

func AccumZeroAABox() AABox {
	return AABox{
		X: ray.Span{Lo: math.Inf(1), Hi: math.Inf(-1)},
		Y: ray.Span{Lo: math.Inf(1), Hi: math.Inf(-1)},
		Z: ray.Span{Lo: math.Inf(1), Hi: math.Inf(-1)},
	}
}

// Everything is the box containing all of space.
func Everything() AABox {
	return AABox{
		X: ray.Span{Lo: math.Inf(-1), Hi: math.Inf(1)},
		Y: ray.Span{Lo: math.Inf(-1), Hi: math.Inf(1)},
		Z: ray.Span{Lo: math.Inf(-1), Hi: math.Inf(1)},
	}
}

func MinContainingAABox(a, b AABox) AABox {
	return AABox{
		X: ray.MinContainingSpan(a.X, b.X),
		Y: ray.MinContainingSpan(a.Y, b.Y),
		Z: ray.MinContainingSpan(a.Z, b.Z),
	}
}

func GrowAABoxToPoint(a AABox, b vec3.T) AABox {
	return MinContainingAABox(a, AABox{
		X: ray.Span{Lo: b[0], Hi: b[0]},
		Y: ray.Span{Lo: b[1], Hi: b[1]},
		Z: ray.Span{Lo: b[2], Hi: b[2]},
	})
}

// FromPoints returns the smallest box containing all the given points.
func FromPoints(points ...vec3.T) AABox {
	result := AccumZeroAABox()
	for _, p := range points {
		result = GrowAABoxToPoint(result, p)
	}
	return result
}

// Pad grows the box by d in every direction.  Flat shapes get a box with
// nonzero thickness this way.
func (a AABox) Pad(d float64) AABox {
	return AABox{
		X: ray.Span{Lo: a.X.Lo - d, Hi: a.X.Hi + d},
		Y: ray.Span{Lo: a.Y.Lo - d, Hi: a.Y.Hi + d},
		Z: ray.Span{Lo: a.Z.Lo - d, Hi: a.Z.Hi + d},
	}
}

func (a AABox) IsFinite() bool {
	return a.X.IsFinite() && a.Y.IsFinite() && a.Z.IsFinite()
}

// Axis returns the span of the box along axis i (0, 1, or 2).
func (a AABox) Axis(i int) ray.Span {
	switch i {
	case 0:
		return a.X
	case 1:
		return a.Y
	}
	return a.Z
}

func (a AABox) SurfaceArea() float64 {
	xLen := a.X.Hi - a.X.Lo
	yLen := a.Y.Hi - a.Y.Lo
	zLen := a.Z.Hi - a.Z.Lo
	return 2 * (xLen*yLen + xLen*zLen + yLen*zLen)
}

// RayTestAABox returns the range of ray parameters for which the ray is inside
// the box, or a NaN span if the ray misses it.  The query's own segment is not
// taken into account.
func RayTestAABox(r ray.Segment, b AABox) ray.Span {
	cover := ray.Span{Lo: math.Inf(-1), Hi: math.Inf(1)}

	for i := 0; i < 3; i++ {
		bounds := b.Axis(i)
		point := r.TheRay.Point[i]
		slope := r.TheRay.Slope[i]

		if slope == 0 {
			// Parallel to this slab; the ray is either always or never inside
			// it.
			if point < bounds.Lo || point > bounds.Hi {
				return ray.NaNSpan()
			}
			continue
		}

		cur := ray.Span{
			Lo: (bounds.Lo - point) / slope,
			Hi: (bounds.Hi - point) / slope,
		}
		if cur.Hi < cur.Lo {
			cur.Lo, cur.Hi = cur.Hi, cur.Lo
		}
		if !ray.SpanOverlaps(cover, cur) {
			return ray.NaNSpan()
		}
		if cur.Lo > cover.Lo {
			cover.Lo = cur.Lo
		}
		if cur.Hi < cover.Hi {
			cover.Hi = cur.Hi
		}
	}

	return cover
}

// RaySegmentHitsAABox reports whether the query's segment passes through the
// box.
func RaySegmentHitsAABox(r ray.Segment, b AABox) bool {
	cover := RayTestAABox(r, b)
	if cover.IsNaN() {
		return false
	}
	return ray.SpanOverlaps(cover, r.TheSegment)
}
