// Package interaction decides what happens to a ray where it strikes a
// surface.
package interaction

import (
	"fmt"
	"math"

	"lightpath/contact"
	"lightpath/geometry"
	"lightpath/ray"
	"lightpath/surface"
	"lightpath/vmath/vec3"
)

type Kind int

const (
	Reflect Kind = iota
	Refract
	Absorb
	LensRedirect
	// Transmit passes the ray on unchanged.
	Transmit
)

func (k Kind) String() string {
	switch k {
	case Reflect:
		return "Reflect"
	case Refract:
		return "Refract"
	case Absorb:
		return "Absorb"
	case LensRedirect:
		return "LensRedirect"
	case Transmit:
		return "Transmit"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the result of a ray striking a surface.
type Outcome struct {
	Kind Kind

	// Next is the ray leaving the surface.  It is unset for Absorb.
	Next ray.Ray

	// TIR is set when a refraction turned into a reflection.
	TIR bool

	// N1 and N2 are the refraction indices on the incident and far sides of a
	// lens boundary.
	N1, N2 float64
}

// Resolve computes the interaction of ray r with surface s at contact c.
// ambientIndex is the refraction index outside lens bodies.
//
// Every outcome except Absorb carries a successor that starts at the contact
// point, has one less bounce left, and has c.T added to its traveled length.
// Callers must not propagate a successor whose parent had no bounces left.
func Resolve(r ray.Ray, c contact.Contact, s *surface.Surface, ambientIndex float64) (Outcome, error) {
	switch role := s.Role.(type) {
	case *surface.Absorber:
		return Outcome{Kind: Absorb}, nil

	case *surface.Mirror:
		return Outcome{
			Kind: Reflect,
			Next: successor(r, c, vec3.Reflect(r.Slope, c.N)),
		}, nil

	case *surface.RealLens:
		return refract(r, c, role, ambientIndex)

	case *surface.TheoreticalLens:
		return redirect(r, c, role)

	case *surface.Inert:
		return Outcome{
			Kind: Transmit,
			Next: successor(r, c, r.Slope),
		}, nil
	}

	return Outcome{}, fmt.Errorf("surface %q has unknown optical role %T", s.Name, s.Role)
}

func successor(r ray.Ray, c contact.Contact, slope vec3.T) ray.Ray {
	next := r
	next.Point = c.P
	next.Slope = vec3.Normalize(slope)
	next.BouncesLeft = r.BouncesLeft - 1
	next.Traveled = r.Traveled + c.T
	next.HideFirstPart = false
	return next
}

func refract(r ray.Ray, c contact.Contact, lens *surface.RealLens, ambientIndex float64) (Outcome, error) {
	n := lens.Index.At(r.Wavelength)
	if !(n > 0) || math.IsInf(n, 0) {
		return Outcome{}, fmt.Errorf("%w: refraction index %v at %v nm", surface.ErrInvalidMaterial, n, r.Wavelength)
	}

	n1, n2 := ambientIndex, n
	if !c.FrontFace {
		n1, n2 = n2, n1
	}

	slope, ok := vec3.Refract(r.Slope, c.N, n1/n2)
	if !ok {
		return Outcome{
			Kind: Reflect,
			Next: successor(r, c, vec3.Reflect(r.Slope, c.N)),
			TIR:  true,
			N1:   n1,
			N2:   n2,
		}, nil
	}

	return Outcome{
		Kind: Refract,
		Next: successor(r, c, slope),
		N1:   n1,
		N2:   n2,
	}, nil
}

// redirect applies the ideal thin lens mapping.  Rays parallel to each other
// meet at the point where the one through the lens center crosses the focal
// plane; a negative focal length diverges them from that point instead.
func redirect(r ray.Ray, c contact.Contact, lens *surface.TheoreticalLens) (Outcome, error) {
	rel := vec3.SubVV(c.P, lens.Center)
	radial := vec3.Reject(lens.Axis, rel)
	if radial.Norm() > lens.Diameter/2 {
		return Outcome{Kind: Transmit, Next: successor(r, c, r.Slope)}, nil
	}

	cos := math.Abs(vec3.IProd(r.Slope, lens.Axis))
	if cos < 1e-12 {
		// Grazing the lens plane.
		return Outcome{Kind: Transmit, Next: successor(r, c, r.Slope)}, nil
	}

	f := lens.FocalLengthAt(r.Wavelength)
	focus := vec3.AddVV(lens.Center, vec3.MulVS(r.Slope, f/cos))

	slope := vec3.SubVV(focus, c.P)
	if f < 0 {
		slope = vec3.MulVS(slope, -1)
	}
	if l := slope.Norm(); l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Outcome{}, fmt.Errorf("%w: lens focus %v coincides with contact point %v", geometry.ErrDegenerateGeometry, focus, c.P)
	}

	return Outcome{
		Kind: LensRedirect,
		Next: successor(r, c, slope),
	}, nil
}
