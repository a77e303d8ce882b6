// Package scenepack loads optical scenes from YAML or JSON files.
package scenepack

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"sigs.k8s.io/yaml"

	"lightpath/geometry"
	"lightpath/ray"
	"lightpath/scene"
	"lightpath/source"
	"lightpath/surface"
)

// DefaultFocalLength is used for a theoretical lens that does not give one.
const DefaultFocalLength = 50.0

var (
	ErrBadShape    = errors.New("bad shape")
	ErrMissingType = errors.New("surface has no optical type")
)

// File is the on-disk form of a scene.
type File struct {
	// AmbientIndex is the refractive index of the space between surfaces.
	// Zero means vacuum.
	AmbientIndex float64 `json:"ambientIndex,omitempty"`

	// LightsOn is the global lights switch.  Absent means on.
	LightsOn *bool `json:"lightsOn,omitempty"`

	Surfaces []SurfaceSpec `json:"surfaces"`
	Sources  []SourceSpec  `json:"sources"`
}

// SurfaceSpec is a named shape with its optical properties inlined.
type SurfaceSpec struct {
	Name  string `json:"name"`
	Shape Shape  `json:"shape"`
	surface.Properties
}

// SourceSpec is a source.Config whose power switch defaults to on.
type SourceSpec struct {
	source.Config
	Power *bool `json:"power,omitempty"`
}

// Shape holds exactly one geometry.
type Shape struct {
	Plane    *Plane    `json:"plane,omitempty"`
	Disc     *Disc     `json:"disc,omitempty"`
	Quad     *Quad     `json:"quad,omitempty"`
	Triangle *Triangle `json:"triangle,omitempty"`
	Mesh     *Mesh     `json:"mesh,omitempty"`
	Sphere   *Sphere   `json:"sphere,omitempty"`
	Box      *Box      `json:"box,omitempty"`
	Cylinder *Cylinder `json:"cylinder,omitempty"`
}

type Vec3 = [3]float64

type Plane struct {
	Point  Vec3 `json:"point"`
	Normal Vec3 `json:"normal"`
}

type Disc struct {
	Center Vec3    `json:"center"`
	Normal Vec3    `json:"normal"`
	Radius float64 `json:"radius"`
}

type Quad struct {
	Corner Vec3 `json:"corner"`
	U      Vec3 `json:"u"`
	V      Vec3 `json:"v"`
}

type Triangle struct {
	A Vec3 `json:"a"`
	B Vec3 `json:"b"`
	C Vec3 `json:"c"`
}

type Mesh struct {
	Vertices  []Vec3   `json:"vertices"`
	Faces     [][3]int `json:"faces"`
	Tolerance float64  `json:"tolerance,omitempty"`
}

type Sphere struct {
	Center Vec3    `json:"center"`
	Radius float64 `json:"radius"`
}

type Box struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

type Cylinder struct {
	Base   Vec3    `json:"base"`
	Axis   Vec3    `json:"axis"`
	Radius float64 `json:"radius"`
	Height float64 `json:"height"`
}

// Scene is a loaded scene, ready to generate and trace rays.
type Scene struct {
	Snapshot   *scene.Snapshot
	Sources    []source.Config
	RunContext source.RunContext
}

// Rays generates the rays of every powered source.
func (s *Scene) Rays() ([]ray.Ray, error) {
	return source.Generate(s.RunContext, s.Sources...)
}

func LoadScene(ctx context.Context, fileName string) (*Scene, error) {
	fileBytes, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("while opening scenepack: %w", err)
	}

	s, err := Parse(ctx, fileBytes)
	if err != nil {
		return nil, fmt.Errorf("while loading %s: %w", fileName, err)
	}
	return s, nil
}

// Parse decodes a scene file and freezes its surfaces into a snapshot.
// Unknown keys are rejected.
func Parse(ctx context.Context, data []byte) (*Scene, error) {
	tracer := otel.Tracer("lightpath/scenepack")
	ctx, span := tracer.Start(ctx, "scenepack.Parse")
	defer span.End()

	f := &File{}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("while unmarshaling scene file: %w", err)
	}
	span.SetAttributes(attribute.Int("surfaces", len(f.Surfaces)), attribute.Int("sources", len(f.Sources)))

	s, err := f.Build(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s, nil
}

// Build converts a decoded file to a scene.  Every surface is classified and
// every source validated, so a bad material or source fails the whole load.
func (f *File) Build(ctx context.Context) (*Scene, error) {
	b := scene.NewBuilder()
	if f.AmbientIndex != 0 {
		b.SetAmbientIndex(f.AmbientIndex)
	}

	for i, spec := range f.Surfaces {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("surface%d", i)
		}

		g, err := spec.Shape.Geometry()
		if err != nil {
			return nil, fmt.Errorf("while reading shape of surface %q: %w", name, err)
		}

		props := spec.Properties
		if props.Type == "" {
			return nil, fmt.Errorf("%w: surface %q needs a type (use %q for a surface that does not interact)", ErrMissingType, name, surface.TypeInert)
		}
		if props.Type == surface.TypeTheoreticalLens && props.FocalLength == 0 {
			props.FocalLength = DefaultFocalLength
		}

		if _, err := b.Add(name, g, props); err != nil {
			return nil, fmt.Errorf("while adding surface %q: %w", name, err)
		}
	}

	snap, err := b.Freeze(ctx)
	if err != nil {
		return nil, fmt.Errorf("while freezing scene: %w", err)
	}

	s := &Scene{
		Snapshot:   snap,
		RunContext: source.RunContext{LightsOn: f.LightsOn == nil || *f.LightsOn},
	}
	for i, spec := range f.Sources {
		cfg := spec.Config
		cfg.Power = spec.Power == nil || *spec.Power
		if cfg.BeamNrColumns == 0 {
			cfg.BeamNrColumns = 1
		}
		if cfg.BeamNrRows == 0 {
			cfg.BeamNrRows = 1
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("while reading source %d (%q): %w", i, cfg.Name, err)
		}
		s.Sources = append(s.Sources, cfg)
	}

	glog.V(1).Infof("Loaded scene with %d surfaces and %d sources", snap.Len(), len(s.Sources))
	return s, nil
}

// Geometry converts the shape to its geometry.  Exactly one shape must be set.
func (s *Shape) Geometry() (geometry.Geometry, error) {
	var out []geometry.Geometry

	if s.Plane != nil {
		out = append(out, &geometry.Plane{Point: s.Plane.Point, Normal: s.Plane.Normal})
	}
	if s.Disc != nil {
		out = append(out, &geometry.Disc{Center: s.Disc.Center, Normal: s.Disc.Normal, Radius: s.Disc.Radius})
	}
	if s.Quad != nil {
		out = append(out, &geometry.Quad{Corner: s.Quad.Corner, U: s.Quad.U, V: s.Quad.V})
	}
	if s.Triangle != nil {
		out = append(out, &geometry.Triangle{A: s.Triangle.A, B: s.Triangle.B, C: s.Triangle.C})
	}
	if s.Mesh != nil {
		m, err := s.Mesh.geometry()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if s.Sphere != nil {
		out = append(out, &geometry.Sphere{Center: s.Sphere.Center, Radius: s.Sphere.Radius})
	}
	if s.Box != nil {
		b := &geometry.Box{}
		for i := 0; i < 3; i++ {
			b.Spans[i] = ray.Span{Lo: s.Box.Min[i], Hi: s.Box.Max[i]}
		}
		out = append(out, b)
	}
	if s.Cylinder != nil {
		out = append(out, &geometry.Cylinder{
			Base:   s.Cylinder.Base,
			Axis:   s.Cylinder.Axis,
			Radius: s.Cylinder.Radius,
			Height: s.Cylinder.Height,
		})
	}

	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d shapes given, want exactly 1", ErrBadShape, len(out))
	}
	return out[0], nil
}

func (m *Mesh) geometry() (*geometry.Mesh, error) {
	if len(m.Faces) == 0 {
		return nil, fmt.Errorf("%w: mesh has no faces", ErrBadShape)
	}
	out := &geometry.Mesh{Tolerance: m.Tolerance}
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= len(m.Vertices) {
				return nil, fmt.Errorf("%w: face %d refers to vertex %d of %d", ErrBadShape, i, v, len(m.Vertices))
			}
		}
		out.Triangles = append(out.Triangles, geometry.Triangle{
			A: m.Vertices[f[0]],
			B: m.Vertices[f[1]],
			C: m.Vertices[f[2]],
		})
	}
	return out, nil
}
