package vec3

import (
	"math"
)

type T [3]float64

func (v T) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// IsFinite reports whether no component is NaN or infinite.
func (v T) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}

func Normalize(v T) T {
	l := v.Norm()
	return T{
		v[0] / l,
		v[1] / l,
		v[2] / l,
	}
}

func AddVV(a, b T) T {
	return T{
		a[0] + b[0],
		a[1] + b[1],
		a[2] + b[2],
	}
}

func SubVV(a, b T) T {
	return T{
		a[0] - b[0],
		a[1] - b[1],
		a[2] - b[2],
	}
}

func MulVS(a T, b float64) T {
	return T{
		a[0] * b,
		a[1] * b,
		a[2] * b,
	}
}

func DivVS(a T, b float64) T {
	return T{
		a[0] / b,
		a[1] / b,
		a[2] / b,
	}
}

func IProd(a, b T) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func CProd(a, b T) T {
	return T{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Distance is the euclidean distance between two points.
func Distance(a, b T) float64 {
	return SubVV(a, b).Norm()
}

// Reject returns the component of b that is orthogonal to A.
func Reject(a, b T) T {
	return SubVV(b, MulVS(Normalize(a), IProd(a, b)/a.Norm()))
}

// Reflect mirrors the direction a about the plane with unit normal n.
func Reflect(a, n T) T {
	return SubVV(a, MulVS(n, 2*IProd(a, n)))
}

// Refract bends the unit direction a through a boundary with unit normal n,
// where nR is the ratio of the incident index to the transmitted index.  The
// normal may face either side of the boundary.  ok is false on total internal
// reflection.
func Refract(a, n T, nR float64) (T, bool) {
	aCos := IProd(a, n)
	snell := 1.0 - (nR*nR)*(1.0-(aCos*aCos))
	if snell < 0.0 {
		return T{}, false
	}

	bCos := math.Sqrt(snell)
	if aCos < 0.0 {
		bCos = -bCos
	}

	return Normalize(AddVV(MulVS(n, bCos-nR*aCos), MulVS(a, nR))), true
}

// Angle returns the unsigned angle between a and b, in radians.
func Angle(a, b T) float64 {
	return math.Atan2(CProd(a, b).Norm(), IProd(a, b))
}

// Basis returns two unit vectors that complete w into a right-handed
// orthonormal frame (u, v, w).  If hint is not parallel to w, u is aligned with
// the part of hint orthogonal to w.
func Basis(w, hint T) (T, T) {
	w = Normalize(w)
	u := Reject(w, hint)
	if n := u.Norm(); n < 1e-9 || math.IsNaN(n) {
		// Pick the axis least aligned with w.
		axis := T{1, 0, 0}
		if math.Abs(w[0]) > 0.9 {
			axis = T{0, 1, 0}
		}
		u = Reject(w, axis)
	}
	u = Normalize(u)
	v := CProd(w, u)
	return u, v
}
