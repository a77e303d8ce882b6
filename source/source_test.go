package source

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lightpath/vmath/vec3"
)

var on = RunContext{LightsOn: true}

func baseConfig() Config {
	return Config{
		Name:             "beam",
		Power:            true,
		BeamNrColumns:    1,
		BeamNrRows:       1,
		MaxRayLength:     1000,
		MaxNrReflections: 10,
		Direction:        vec3.T{1, 0, 0},
	}
}

func TestSingleRay(t *testing.T) {
	rays, err := Generate(on, baseConfig())
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if len(rays) != 1 {
		t.Fatalf("got %d rays, want 1", len(rays))
	}
	r := rays[0]
	if r.ID != "beam/0" || r.Slope != (vec3.T{1, 0, 0}) || r.BouncesLeft != 10 || r.MaxLength != 1000 || !r.Power {
		t.Errorf("unexpected ray %+v", r)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLinearBeamSpacing(t *testing.T) {
	cfg := baseConfig()
	cfg.BeamNrColumns = 5
	cfg.BeamDistance = 2
	cfg.Origin = vec3.T{3, 3, 3}

	rays, err := Generate(on, cfg)
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}

	offsets := []float64{}
	u, _ := vec3.Basis(cfg.Direction, vec3.T{0, 0, 1})
	for _, r := range rays {
		if r.Slope != (vec3.T{1, 0, 0}) {
			t.Errorf("ray %s is not parallel to the beam: %v", r.ID, r.Slope)
		}
		rel := vec3.SubVV(r.Point, cfg.Origin)
		if math.Abs(vec3.IProd(rel, cfg.Direction)) > 1e-12 {
			t.Errorf("ray %s origin %v is not in the beam's cross-section", r.ID, r.Point)
		}
		offsets = append(offsets, math.Round(vec3.IProd(rel, u)*1e9)/1e9)
	}

	if diff := cmp.Diff(offsets, []float64{-4, -2, 0, 2, 4}); diff != "" {
		t.Errorf("Bad offsets; diff (-got +want)\n%s", diff)
	}
}

func TestGridBeamIsCentered(t *testing.T) {
	cfg := baseConfig()
	cfg.BeamNrColumns = 3
	cfg.BeamNrRows = 4
	cfg.BeamDistance = 1.5

	rays, err := Generate(on, cfg)
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if len(rays) != 12 {
		t.Fatalf("got %d rays, want 12", len(rays))
	}
	sum := vec3.T{}
	for _, r := range rays {
		sum = vec3.AddVV(sum, r.Point)
	}
	if sum.Norm() > 1e-9 {
		t.Errorf("grid centroid = %v, want origin", vec3.DivVS(sum, 12))
	}
}

func TestRadialBeam(t *testing.T) {
	cfg := baseConfig()
	cfg.Spherical = true
	cfg.BeamNrColumns = 8

	rays, err := Generate(on, cfg)
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if len(rays) != 8 {
		t.Fatalf("got %d rays, want 8", len(rays))
	}
	for i, r := range rays {
		if r.Point != cfg.Origin {
			t.Errorf("ray %d starts at %v, want origin", i, r.Point)
		}
		got := vec3.Angle(r.Slope, rays[(i+1)%8].Slope)
		if math.Abs(got-math.Pi/4) > 1e-9 {
			t.Errorf("angle between rays %d and %d = %v, want pi/4", i, (i+1)%8, got)
		}
	}
	if rays[0].Slope != (vec3.T{1, 0, 0}) {
		t.Errorf("first ray %v does not follow the primary direction", rays[0].Slope)
	}
}

func TestSphericalBeamAvoidsPoles(t *testing.T) {
	cfg := baseConfig()
	cfg.Spherical = true
	cfg.BeamNrColumns = 6
	cfg.BeamNrRows = 4

	rays, err := Generate(on, cfg)
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if len(rays) != 24 {
		t.Fatalf("got %d rays, want 24", len(rays))
	}
	sum := vec3.T{}
	for _, r := range rays {
		if math.Abs(math.Abs(vec3.IProd(r.Slope, cfg.Direction))-1) < 1e-6 {
			t.Errorf("ray %s lies on a pole", r.ID)
		}
		sum = vec3.AddVV(sum, r.Slope)
	}
	if sum.Norm() > 1e-9 {
		t.Errorf("directions are not balanced: sum %v", sum)
	}
}

func TestSpectralSource(t *testing.T) {
	cfg := baseConfig()
	cfg.BeamNrColumns = 2
	cfg.BeamDistance = 1
	cfg.Sunlight = true

	rays, err := Generate(on, cfg)
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if len(rays) != 14 {
		t.Fatalf("got %d rays, want 14", len(rays))
	}
	if rays[0].Point != rays[6].Point || rays[0].Wavelength != 400 || rays[6].Wavelength != 700 {
		t.Errorf("wavelengths are not grouped per beam: %+v, %+v", rays[0], rays[6])
	}

	cfg.Wavelengths = []float64{532}
	rays, err = Generate(on, cfg)
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if len(rays) != 2 || rays[1].Wavelength != 532 {
		t.Errorf("explicit wavelengths not honored: %+v", rays)
	}
}

func TestPowerSwitches(t *testing.T) {
	cfg := baseConfig()
	rays, err := Generate(RunContext{LightsOn: false}, cfg)
	if err != nil || len(rays) != 0 {
		t.Errorf("Generate(lights off) = %v, %v; want no rays", rays, err)
	}

	cfg.Power = false
	rays, err = Generate(on, cfg)
	if err != nil || len(rays) != 0 {
		t.Errorf("Generate(power off) = %v, %v; want no rays", rays, err)
	}
}

func TestInvalidConfig(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(c *Config)
	}{
		{desc: "zero direction", mutate: func(c *Config) { c.Direction = vec3.T{} }},
		{desc: "no columns", mutate: func(c *Config) { c.BeamNrColumns = 0 }},
		{desc: "negative distance", mutate: func(c *Config) { c.BeamDistance = -1 }},
		{desc: "zero length", mutate: func(c *Config) { c.MaxRayLength = 0 }},
		{desc: "infinite length", mutate: func(c *Config) { c.MaxRayLength = math.Inf(1) }},
		{desc: "infinite distance", mutate: func(c *Config) { c.BeamDistance = math.Inf(1) }},
		{desc: "negative reflections", mutate: func(c *Config) { c.MaxNrReflections = -1 }},
		{desc: "bad wavelength", mutate: func(c *Config) { c.Wavelengths = []float64{-500} }},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			if _, err := Generate(on, cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Generate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDuplicateNames(t *testing.T) {
	if _, err := Generate(on, baseConfig(), baseConfig()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Generate() = %v, want ErrInvalidConfig", err)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := baseConfig()
	cfg.Spherical = true
	cfg.BeamNrColumns = 5
	cfg.BeamNrRows = 3
	a, _ := Generate(on, cfg)
	b, _ := Generate(on, cfg)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Generate() is not deterministic; diff (-a +b)\n%s", diff)
	}
}
