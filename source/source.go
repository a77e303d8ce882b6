// Package source generates the initial rays emitted by ray sources.
package source

import (
	"errors"
	"fmt"
	"math"

	"lightpath/ray"
	"lightpath/spectrum"
	"lightpath/vmath/mat33"
	"lightpath/vmath/vec3"
)

var ErrInvalidConfig = errors.New("invalid ray source configuration")

// RunContext carries run-wide switches that apply to every source.
type RunContext struct {
	// LightsOn switches every source on or off at once.
	LightsOn bool
}

// Config describes one ray source.
//
// With Spherical unset, the source emits a grid of BeamNrColumns x BeamNrRows
// parallel rays spaced BeamDistance apart and centered on Origin.  With
// Spherical set and a single row, it emits BeamNrColumns rays fanned out evenly
// around a full circle; with several rows it covers the whole sphere.
type Config struct {
	Name string `json:"name"`

	Power     bool `json:"power"`
	Spherical bool `json:"spherical,omitempty"`

	BeamNrColumns int     `json:"beamNrColumns"`
	BeamNrRows    int     `json:"beamNrRows"`
	BeamDistance  float64 `json:"beamDistance,omitempty"`

	MaxRayLength     float64 `json:"maxRayLength"`
	MaxNrReflections int     `json:"maxNrReflections"`

	// Wavelengths, in nanometers, emitted along every beam direction.  When
	// empty, Sunlight selects the visible sample set; otherwise rays are
	// untagged.
	Wavelengths []float64 `json:"wavelengths,omitempty"`
	Sunlight    bool      `json:"sunlight,omitempty"`

	Origin    vec3.T `json:"origin"`
	Direction vec3.T `json:"direction"`

	// Up orients the beam's columns and the plane of a radial fan.  Optional.
	Up *vec3.T `json:"up,omitempty"`

	HideFirstPart bool `json:"hideFirstPart,omitempty"`
}

func (c *Config) Validate() error {
	if n := c.Direction.Norm(); n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: direction %v", ErrInvalidConfig, c.Direction)
	}
	if !c.Origin.IsFinite() {
		return fmt.Errorf("%w: origin %v", ErrInvalidConfig, c.Origin)
	}
	if c.BeamNrColumns < 1 || c.BeamNrRows < 1 {
		return fmt.Errorf("%w: beam is %d columns by %d rows", ErrInvalidConfig, c.BeamNrColumns, c.BeamNrRows)
	}
	if c.BeamDistance < 0 || math.IsNaN(c.BeamDistance) || math.IsInf(c.BeamDistance, 0) {
		return fmt.Errorf("%w: beam distance %v", ErrInvalidConfig, c.BeamDistance)
	}
	if !(c.MaxRayLength > 0) || math.IsInf(c.MaxRayLength, 0) {
		return fmt.Errorf("%w: max ray length %v", ErrInvalidConfig, c.MaxRayLength)
	}
	if c.MaxNrReflections < 0 {
		return fmt.Errorf("%w: max reflections %d", ErrInvalidConfig, c.MaxNrReflections)
	}
	for _, w := range c.Wavelengths {
		if !(w > 0) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: wavelength %v", ErrInvalidConfig, w)
		}
	}
	return nil
}

// Generate emits the rays of every powered source.  Rays are identified as
// "<source name>/<n>" in emission order.
func Generate(rc RunContext, cfgs ...Config) ([]ray.Ray, error) {
	if !rc.LightsOn {
		return nil, nil
	}

	seen := map[string]bool{}
	rays := []ray.Ray{}
	for i := range cfgs {
		cfg := cfgs[i]
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("source%d", i)
		}
		if seen[cfg.Name] {
			return nil, fmt.Errorf("%w: duplicate source name %q", ErrInvalidConfig, cfg.Name)
		}
		seen[cfg.Name] = true

		if !cfg.Power {
			continue
		}

		sourceRays, err := cfg.Rays()
		if err != nil {
			return nil, fmt.Errorf("while generating rays for source %q: %w", cfg.Name, err)
		}
		rays = append(rays, sourceRays...)
	}
	return rays, nil
}

// beam is a ray origin and direction, before wavelengths are assigned.
type beam struct {
	point vec3.T
	slope vec3.T
}

// Rays emits this source's rays, ignoring Power.
func (c *Config) Rays() ([]ray.Ray, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	w := vec3.Normalize(c.Direction)
	hint := vec3.T{0, 0, 1}
	if c.Up != nil {
		hint = *c.Up
	}
	u, v := vec3.Basis(w, hint)

	var beams []beam
	switch {
	case !c.Spherical:
		beams = c.gridBeams(u, v, w)
	case c.BeamNrRows == 1:
		beams = c.radialBeams(v, w)
	default:
		beams = c.sphericalBeams(u, v, w)
	}

	wavelengths := c.Wavelengths
	if len(wavelengths) == 0 {
		if c.Sunlight {
			wavelengths = spectrum.Sunlight()
		} else {
			wavelengths = []float64{0}
		}
	}

	rays := make([]ray.Ray, 0, len(beams)*len(wavelengths))
	for _, b := range beams {
		for _, l := range wavelengths {
			rays = append(rays, ray.Ray{
				ID:            fmt.Sprintf("%s/%d", c.Name, len(rays)),
				Point:         b.point,
				Slope:         b.slope,
				Wavelength:    l,
				Power:         true,
				BouncesLeft:   c.MaxNrReflections,
				MaxLength:     c.MaxRayLength,
				HideFirstPart: c.HideFirstPart,
			})
		}
	}
	return rays, nil
}

func (c *Config) gridBeams(u, v, w vec3.T) []beam {
	beams := make([]beam, 0, c.BeamNrColumns*c.BeamNrRows)
	for r := 0; r < c.BeamNrRows; r++ {
		rowOffset := (float64(r) - float64(c.BeamNrRows-1)/2) * c.BeamDistance
		for col := 0; col < c.BeamNrColumns; col++ {
			colOffset := (float64(col) - float64(c.BeamNrColumns-1)/2) * c.BeamDistance
			p := vec3.AddVV(c.Origin, vec3.AddVV(vec3.MulVS(u, colOffset), vec3.MulVS(v, rowOffset)))
			beams = append(beams, beam{point: p, slope: w})
		}
	}
	return beams
}

// radialBeams fans rays around the circle in the plane normal to v, starting
// along w.
func (c *Config) radialBeams(v, w vec3.T) []beam {
	beams := make([]beam, 0, c.BeamNrColumns)
	step := 2 * math.Pi / float64(c.BeamNrColumns)
	for k := 0; k < c.BeamNrColumns; k++ {
		slope := mat33.MulMV(mat33.RotationAbout(v, float64(k)*step), w)
		beams = append(beams, beam{point: c.Origin, slope: vec3.Normalize(slope)})
	}
	return beams
}

// sphericalBeams covers the sphere with rows of constant polar angle about w.
// Polar angles sit at the middle of equal bands, so no ray lies on a pole.
func (c *Config) sphericalBeams(u, v, w vec3.T) []beam {
	frame := mat33.FromColumns(u, v, w)
	beams := make([]beam, 0, c.BeamNrColumns*c.BeamNrRows)
	for i := 0; i < c.BeamNrRows; i++ {
		theta := (float64(i) + 0.5) * math.Pi / float64(c.BeamNrRows)
		sinTheta, cosTheta := math.Sincos(theta)
		for j := 0; j < c.BeamNrColumns; j++ {
			sinPhi, cosPhi := math.Sincos(2 * math.Pi * float64(j) / float64(c.BeamNrColumns))
			local := vec3.T{sinTheta * cosPhi, sinTheta * sinPhi, cosTheta}
			beams = append(beams, beam{point: c.Origin, slope: vec3.Normalize(mat33.MulMV(frame, local))})
		}
	}
	return beams
}
