// Package surface classifies scene geometry by its optical role.
package surface

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/glog"

	"lightpath/geometry"
	"lightpath/material"
	"lightpath/vmath/vec3"
)

// ErrInvalidMaterial is returned when a surface's optical parameters are
// unusable.  A run that contains such a surface must not start.
var ErrInvalidMaterial = errors.New("invalid material")

// Optical types, as named in scene files.
const (
	TypeMirror          = "mirror"
	TypeAbsorber        = "absorber"
	TypeLens            = "lens"
	TypeTheoreticalLens = "lens_theory"
	TypeInert           = "inert"
)

// Index curves are checked over this band when a surface is classified.
const (
	checkLo = 380.0
	checkHi = 780.0
)

// Role is the optical behavior of a surface.  It is one of *Mirror,
// *Absorber, *RealLens, *TheoreticalLens, or *Inert.
type Role interface {
	Type() string
}

type Mirror struct{}

func (*Mirror) Type() string { return TypeMirror }

type Absorber struct{}

func (*Absorber) Type() string { return TypeAbsorber }

// RealLens is a refracting body.  Index gives its refraction index by
// wavelength.
type RealLens struct {
	Material string
	Index    material.IndexCurve
}

func (*RealLens) Type() string { return TypeLens }

// Dispersion adjusts an idealized lens's focal length for a wavelength.
type Dispersion func(focalLength, wavelength float64) float64

// DiffractiveDispersion is the focal law of a diffractive lens designed for
// designWavelength: focal length is inversely proportional to wavelength.
func DiffractiveDispersion(designWavelength float64) Dispersion {
	return func(focalLength, wavelength float64) float64 {
		if wavelength == 0 {
			return focalLength
		}
		return focalLength * designWavelength / wavelength
	}
}

// TheoreticalLens is an ideal thin lens that maps rays by focal length alone.
type TheoreticalLens struct {
	Diameter    float64
	FocalLength float64
	Diffractive bool

	// Center and Axis place the lens.  Axis is a unit vector; which way it
	// points does not matter.
	Center vec3.T
	Axis   vec3.T

	// Dispersion, if set, gives the focal length by wavelength.
	Dispersion Dispersion
}

func (*TheoreticalLens) Type() string { return TypeTheoreticalLens }

// FocalLengthAt returns the lens's focal length for a wavelength.
func (l *TheoreticalLens) FocalLengthAt(wavelength float64) float64 {
	if l.Dispersion == nil {
		return l.FocalLength
	}
	return l.Dispersion(l.FocalLength, wavelength)
}

// Inert surfaces take no part in optics.
type Inert struct{}

func (*Inert) Type() string { return TypeInert }

// Surface is a piece of geometry together with its optical role.
type Surface struct {
	// Index is the registration order of the surface within its scene.
	Index    int
	Name     string
	Geometry geometry.Geometry
	Role     Role
}

// Properties are the optical parameters attached to a surface.
type Properties struct {
	Type string `json:"type"`

	// Lens index, in order of precedence: Sellmeier, Cauchy, Material,
	// RefractionIndex.
	RefractionIndex float64   `json:"refractionIndex,omitempty"`
	Material        string    `json:"material,omitempty"`
	Sellmeier       []float64 `json:"sellmeier,omitempty"`
	Cauchy          []float64 `json:"cauchy,omitempty"`

	// Idealized lens parameters.
	Diameter         float64 `json:"diameter,omitempty"`
	FocalLength      float64 `json:"focalLength,omitempty"`
	Diffractive      bool    `json:"diffractive,omitempty"`
	DesignWavelength float64 `json:"designWavelength,omitempty"`
	Center           *vec3.T `json:"center,omitempty"`
	Axis             *vec3.T `json:"axis,omitempty"`
}

// Classify validates p and builds the surface registered at index.
func Classify(index int, name string, g geometry.Geometry, p Properties) (*Surface, error) {
	if g == nil {
		return nil, fmt.Errorf("surface %q has no geometry", name)
	}

	var role Role
	var err error
	switch p.Type {
	case TypeMirror:
		role = &Mirror{}
	case TypeAbsorber:
		role = &Absorber{}
	case TypeInert:
		role = &Inert{}
	case "":
		glog.V(1).Infof("Surface %q has no optical type; treating it as inert", name)
		role = &Inert{}
	case TypeLens:
		role, err = classifyRealLens(p)
	case TypeTheoreticalLens:
		role, err = classifyTheoreticalLens(g, p)
	default:
		err = fmt.Errorf("%w: unknown optical type %q", ErrInvalidMaterial, p.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("while classifying surface %q: %w", name, err)
	}

	return &Surface{
		Index:    index,
		Name:     name,
		Geometry: g,
		Role:     role,
	}, nil
}

func classifyRealLens(p Properties) (*RealLens, error) {
	lens := &RealLens{Material: p.Material}

	switch {
	case len(p.Sellmeier) != 0:
		s, err := material.ParseSellmeier(p.Sellmeier)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMaterial, err)
		}
		lens.Index = material.Sellmeier(s)
	case len(p.Cauchy) != 0:
		c, err := material.ParseCauchy(p.Cauchy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMaterial, err)
		}
		lens.Index = material.Cauchy(c)
	case p.Material != "" && p.Material != "?":
		s, ok := material.Lookup(p.Material)
		if !ok {
			return nil, fmt.Errorf("%w: unknown material %q", ErrInvalidMaterial, p.Material)
		}
		lens.Index = material.Sellmeier(s)
	default:
		if !(p.RefractionIndex > 0) || math.IsInf(p.RefractionIndex, 0) {
			return nil, fmt.Errorf("%w: refraction index %v", ErrInvalidMaterial, p.RefractionIndex)
		}
		lens.Index = material.Constant(p.RefractionIndex)
	}

	if err := lens.Index.Check(checkLo, checkHi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMaterial, err)
	}
	return lens, nil
}

func classifyTheoreticalLens(g geometry.Geometry, p Properties) (*TheoreticalLens, error) {
	lens := &TheoreticalLens{
		Diameter:    p.Diameter,
		FocalLength: p.FocalLength,
		Diffractive: p.Diffractive,
	}

	if p.FocalLength == 0 || math.IsNaN(p.FocalLength) || math.IsInf(p.FocalLength, 0) {
		return nil, fmt.Errorf("%w: focal length %v", ErrInvalidMaterial, p.FocalLength)
	}

	if axial, ok := g.(geometry.Axial); ok {
		lens.Center, lens.Axis = axial.AxisFrame()
	}
	if p.Center != nil {
		lens.Center = *p.Center
	}
	if p.Axis != nil {
		lens.Axis = *p.Axis
	}
	if n := lens.Axis.Norm(); n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("%w: idealized lens needs an axis", ErrInvalidMaterial)
	}
	lens.Axis = vec3.Normalize(lens.Axis)

	if lens.Diameter == 0 {
		if d, ok := g.(*geometry.Disc); ok {
			lens.Diameter = 2 * d.Radius
		}
	}
	if !(lens.Diameter > 0) {
		return nil, fmt.Errorf("%w: lens diameter %v", ErrInvalidMaterial, lens.Diameter)
	}

	if p.Diffractive {
		design := p.DesignWavelength
		if design == 0 {
			design = material.ReferenceWavelength
		}
		if design < 0 {
			return nil, fmt.Errorf("%w: design wavelength %v", ErrInvalidMaterial, design)
		}
		lens.Dispersion = DiffractiveDispersion(design)
	}

	return lens, nil
}
