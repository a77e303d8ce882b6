package contact

import (
	"math"

	"lightpath/vmath/vec3"
)

// Contact records where a ray strikes a surface.
type Contact struct {
	// T is the distance along the ray to the contact point.
	T float64
	P vec3.T

	// N is the unit surface normal, oriented against the incoming ray.
	N vec3.T

	// FrontFace is true when the ray struck the outward-facing side of the
	// surface.
	FrontFace bool

	// Surface is the registration index of the struck surface, or -1 if not
	// yet known.
	Surface int
}

func ContactNaN() Contact {
	return Contact{
		T:       math.NaN(),
		Surface: -1,
	}
}

func (c Contact) IsNaN() bool {
	return math.IsNaN(c.T)
}

// Oriented builds a contact at distance t along a ray with direction slope,
// given the surface's outward normal at p.
func Oriented(t float64, p, outward, slope vec3.T) Contact {
	c := Contact{
		T:         t,
		P:         p,
		N:         outward,
		FrontFace: true,
		Surface:   -1,
	}
	if vec3.IProd(slope, outward) > 0 {
		c.N = vec3.MulVS(outward, -1)
		c.FrontFace = false
	}
	return c
}
