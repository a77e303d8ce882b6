package tracer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/geometry"
	"lightpath/path"
	"lightpath/ray"
	"lightpath/scene"
	"lightpath/source"
	"lightpath/surface"
	"lightpath/vmath/vec3"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

type surfaceSpec struct {
	name  string
	g     geometry.Geometry
	props surface.Properties
}

func newTracer(t *testing.T, specs ...surfaceSpec) *Tracer {
	t.Helper()
	b := scene.NewBuilder()
	for _, s := range specs {
		if _, err := b.Add(s.name, s.g, s.props); err != nil {
			t.Fatalf("Add(%q) = %v", s.name, err)
		}
	}
	snap, err := b.Freeze(context.Background())
	if err != nil {
		t.Fatalf("Freeze() = %v", err)
	}
	return New(snap, WithWorkers(4))
}

func singleRay(point, slope vec3.T, reflections int, length float64) ray.Ray {
	return ray.Ray{
		ID:          "r/0",
		Point:       point,
		Slope:       vec3.Normalize(slope),
		Power:       true,
		BouncesLeft: reflections,
		MaxLength:   length,
	}
}

var (
	mirrorProps   = surface.Properties{Type: surface.TypeMirror}
	absorberProps = surface.Properties{Type: surface.TypeAbsorber}
	floorMirror   = surfaceSpec{name: "floor", g: &geometry.Plane{Point: vec3.T{0, 0, 0}, Normal: vec3.T{0, 1, 0}}, props: mirrorProps}
)

func directions(p *path.RayPath) []vec3.T {
	out := []vec3.T{}
	for _, s := range p.Segments {
		out = append(out, s.Direction)
	}
	return out
}

func TestPlanarMirror(t *testing.T) {
	tr := newTracer(t, floorMirror)
	p := tr.Trace(context.Background(), singleRay(vec3.T{-10, 10, 0}, vec3.T{1, -1, 0}, 1, 100))

	if p.Reason != path.ExitedScene {
		t.Errorf("Reason = %v, want ExitedScene", p.Reason)
	}
	want := []vec3.T{vec3.Normalize(vec3.T{1, -1, 0}), vec3.Normalize(vec3.T{1, 1, 0})}
	if diff := cmp.Diff(directions(p), want, approx); diff != "" {
		t.Errorf("Bad directions; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(p.Segments[0].End, vec3.T{0, 0, 0}, approx); diff != "" {
		t.Errorf("Bad mirror contact; diff (-got +want)\n%s", diff)
	}
	if math.Abs(p.Length()-100) > 1e-6 {
		t.Errorf("Length() = %v, want the full 100", p.Length())
	}
}

func TestZeroReflections(t *testing.T) {
	tr := newTracer(t, floorMirror)
	p := tr.Trace(context.Background(), singleRay(vec3.T{-10, 10, 0}, vec3.T{1, -1, 0}, 0, 100))

	if p.Reason != path.MaxReflectionsReached {
		t.Errorf("Reason = %v, want MaxReflectionsReached", p.Reason)
	}
	if len(p.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(p.Segments))
	}
	if diff := cmp.Diff(p.Segments[0].End, vec3.T{0, 0, 0}, approx); diff != "" {
		t.Errorf("segment does not end on the mirror; diff (-got +want)\n%s", diff)
	}
}

func TestRefractionAngle(t *testing.T) {
	tr := newTracer(t, surfaceSpec{
		name:  "glass",
		g:     &geometry.Plane{Point: vec3.T{0, 0, 0}, Normal: vec3.T{0, 1, 0}},
		props: surface.Properties{Type: surface.TypeLens, RefractionIndex: 1.5},
	})
	in := vec3.T{math.Sin(math.Pi / 6), -math.Cos(math.Pi / 6), 0}
	p := tr.Trace(context.Background(), singleRay(vec3.MulVS(in, -10), in, 5, 50))

	if len(p.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(p.Segments))
	}
	got := vec3.Angle(p.Segments[1].Direction, vec3.T{0, -1, 0}) * 180 / math.Pi
	if math.Abs(got-19.47) > 0.01 {
		t.Errorf("refracted at %v degrees, want 19.47", got)
	}
}

func TestGlassSlabDisplacesRay(t *testing.T) {
	tr := newTracer(t, surfaceSpec{
		name:  "slab",
		g:     &geometry.Box{Spans: [3]ray.Span{{Lo: -10, Hi: 10}, {Lo: -1, Hi: 1}, {Lo: -10, Hi: 10}}},
		props: surface.Properties{Type: surface.TypeLens, Material: "Window glass"},
	})
	in := vec3.Normalize(vec3.T{1, -2, 0})
	r := singleRay(vec3.T{-3, 5, 0}, in, 10, 40)
	r.Wavelength = 500
	p := tr.Trace(context.Background(), r)

	if p.Reason != path.ExitedScene || len(p.Segments) != 3 {
		t.Fatalf("got %d segments ending %v, want 3 ending ExitedScene", len(p.Segments), p.Reason)
	}
	if diff := cmp.Diff(p.Segments[2].Direction, in, approx); diff != "" {
		t.Errorf("ray leaving a parallel slab changed direction; diff (-got +want)\n%s", diff)
	}
	for _, s := range p.Segments {
		if s.Wavelength != 500 {
			t.Errorf("segment lost its wavelength: %+v", s)
		}
	}
}

func TestThinLensFocus(t *testing.T) {
	tr := newTracer(t, surfaceSpec{
		name:  "lens",
		g:     &geometry.Disc{Center: vec3.T{0, 0, 0}, Normal: vec3.T{0, 0, 1}, Radius: 20},
		props: surface.Properties{Type: surface.TypeTheoreticalLens, FocalLength: 100},
	})

	rays, err := source.Generate(source.RunContext{LightsOn: true}, source.Config{
		Name:             "beam",
		Power:            true,
		BeamNrColumns:    5,
		BeamNrRows:       1,
		BeamDistance:     2,
		MaxRayLength:     500,
		MaxNrReflections: 3,
		Origin:           vec3.T{0, 0, -50},
		Direction:        vec3.T{0, 0, 1},
	})
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}

	res, err := tr.Run(context.Background(), rays)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	for _, p := range res.InOrder() {
		if len(p.Segments) != 2 {
			t.Fatalf("ray %s has %d segments, want 2", p.RayID, len(p.Segments))
		}
		s := p.Segments[1]
		// Distance from the focal point to the line of the outgoing segment.
		rel := vec3.SubVV(vec3.T{0, 0, 100}, s.Start)
		miss := vec3.CProd(rel, s.Direction).Norm()
		if miss > 1e-9 {
			t.Errorf("ray %s misses the focus by %v", p.RayID, miss)
		}
	}
}

func TestEmptyScene(t *testing.T) {
	tr := newTracer(t)
	p := tr.Trace(context.Background(), singleRay(vec3.T{1, 2, 3}, vec3.T{0, 1, 0}, 3, 75))

	if p.Reason != path.ExitedScene {
		t.Errorf("Reason = %v, want ExitedScene", p.Reason)
	}
	if len(p.Segments) != 1 || math.Abs(p.Segments[0].Length()-75) > 1e-9 {
		t.Errorf("got segments %+v, want one of length 75", p.Segments)
	}
}

func TestMaxLength(t *testing.T) {
	tr := newTracer(t, surfaceSpec{name: "far", g: &geometry.Plane{Point: vec3.T{0, 0, 100}, Normal: vec3.T{0, 0, 1}}, props: mirrorProps})
	p := tr.Trace(context.Background(), singleRay(vec3.T{0, 0, 0}, vec3.T{0, 0, 1}, 3, 40))

	if p.Reason != path.MaxLengthReached {
		t.Errorf("Reason = %v, want MaxLengthReached", p.Reason)
	}
	if len(p.Segments) != 1 || math.Abs(p.Length()-40) > 1e-9 {
		t.Errorf("got segments %+v, want one clipped to 40", p.Segments)
	}
}

func TestBouncingBetweenMirrors(t *testing.T) {
	tr := newTracer(t,
		surfaceSpec{name: "left", g: &geometry.Plane{Point: vec3.T{-5, 0, 0}, Normal: vec3.T{1, 0, 0}}, props: mirrorProps},
		surfaceSpec{name: "right", g: &geometry.Plane{Point: vec3.T{5, 0, 0}, Normal: vec3.T{-1, 0, 0}}, props: mirrorProps},
	)

	testCases := []struct {
		desc         string
		reflections  int
		length       float64
		wantSegments int
		wantReason   path.Terminal
	}{
		{desc: "budget runs out", reflections: 6, length: 1000, wantSegments: 7, wantReason: path.MaxReflectionsReached},
		{desc: "length runs out", reflections: 100, length: 33, wantSegments: 4, wantReason: path.MaxLengthReached},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			p := tr.Trace(context.Background(), singleRay(vec3.T{0, 0, 0}, vec3.T{1, 0, 0}, tc.reflections, tc.length))
			if p.Reason != tc.wantReason || len(p.Segments) != tc.wantSegments {
				t.Errorf("got %d segments ending %v, want %d ending %v", len(p.Segments), p.Reason, tc.wantSegments, tc.wantReason)
			}
			if len(p.Segments) > tc.reflections+1 {
				t.Errorf("%d segments exceeds reflection budget %d", len(p.Segments), tc.reflections)
			}
			if p.Length() > tc.length+scene.Epsilon {
				t.Errorf("Length() = %v exceeds max %v", p.Length(), tc.length)
			}
		})
	}
}

func TestAbsorber(t *testing.T) {
	tr := newTracer(t, surfaceSpec{name: "wall", g: &geometry.Sphere{Center: vec3.T{0, 0, 10}, Radius: 1}, props: absorberProps})
	p := tr.Trace(context.Background(), singleRay(vec3.T{0, 0, 0}, vec3.T{0, 0, 1}, 0, 100))
	if p.Reason != path.Absorbed || len(p.Segments) != 1 {
		t.Errorf("got %d segments ending %v, want 1 ending Absorbed", len(p.Segments), p.Reason)
	}
	if p.Segments[0].Surface != 0 {
		t.Errorf("segment ends on surface %d, want 0", p.Segments[0].Surface)
	}
}

func TestHideFirstPart(t *testing.T) {
	tr := newTracer(t, floorMirror)
	r := singleRay(vec3.T{-10, 10, 0}, vec3.T{1, -1, 0}, 1, 100)
	r.HideFirstPart = true
	p := tr.Trace(context.Background(), r)

	got := []bool{}
	for _, s := range p.Segments {
		got = append(got, s.Hidden)
	}
	if diff := cmp.Diff(got, []bool{true, false}); diff != "" {
		t.Errorf("Bad hidden flags; diff (-got +want)\n%s", diff)
	}
}

func TestInvalidRayDoesNotStopBatch(t *testing.T) {
	tr := newTracer(t, floorMirror)
	good := singleRay(vec3.T{0, 5, 0}, vec3.T{0, -1, 0}, 2, 20)
	bad := good
	bad.ID = "r/1"
	bad.Slope = vec3.T{0, -3, 0}

	res, err := tr.Run(context.Background(), []ray.Ray{good, bad})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := res.Paths["r/0"].Reason; got != path.ExitedScene {
		t.Errorf("good ray ended %v, want ExitedScene", got)
	}
	if got := res.Paths["r/1"]; got.Reason != path.Invalid || len(got.Segments) != 0 {
		t.Errorf("bad ray = %+v, want Invalid with no segments", got)
	}
	want := map[path.Terminal]int{path.ExitedScene: 1, path.Invalid: 1}
	if diff := cmp.Diff(res.Stats.TerminalCount, want); diff != "" {
		t.Errorf("Bad histogram; diff (-got +want)\n%s", diff)
	}
	if res.Stats.RayCount != 2 {
		t.Errorf("RayCount = %d, want 2", res.Stats.RayCount)
	}
}

func TestNonFiniteRayIsInvalid(t *testing.T) {
	tr := newTracer(t, surfaceSpec{name: "ball", g: &geometry.Sphere{Center: vec3.T{0, 0, 0}, Radius: 1}, props: mirrorProps})

	testCases := []struct {
		desc string
		r    ray.Ray
	}{
		{desc: "infinite origin", r: singleRay(vec3.T{math.Inf(1), 0, 0}, vec3.T{0, 0, 1}, 2, 10)},
		{desc: "infinite length", r: singleRay(vec3.T{0, 0, 5}, vec3.T{0, 0, 1}, 2, math.Inf(1))},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if p := tr.Trace(context.Background(), tc.r); p.Reason != path.Invalid || len(p.Segments) != 0 {
				t.Errorf("got %d segments ending %v, want none ending Invalid", len(p.Segments), p.Reason)
			}
		})
	}
}

// unsoundGeometry reports a hit whose normal is NaN.
type unsoundGeometry struct{}

func (unsoundGeometry) GetAABox() aabox.AABox {
	return aabox.FromPoints(vec3.T{-1, -1, -1}, vec3.T{1, 1, 1})
}
func (unsoundGeometry) RayInto(q ray.Segment) contact.Contact {
	return contact.Contact{T: 1, P: q.TheRay.Eval(1), N: vec3.T{math.NaN(), 0, 0}}
}
func (unsoundGeometry) RayExit(ray.Segment) contact.Contact { return contact.ContactNaN() }
func (unsoundGeometry) NormalAt(vec3.T) (vec3.T, error) {
	return vec3.T{}, geometry.ErrDegenerateGeometry
}
func (unsoundGeometry) Validate() error { return nil }

func TestDegenerateGeometryEndsOnlyItsRay(t *testing.T) {
	tr := newTracer(t, surfaceSpec{name: "unsound", g: unsoundGeometry{}, props: mirrorProps})

	bad := singleRay(vec3.T{0, 0, -5}, vec3.T{0, 0, 1}, 3, 50)
	good := singleRay(vec3.T{10, 0, 0}, vec3.T{1, 0, 0}, 3, 50)
	good.ID = "r/1"

	res, err := tr.Run(context.Background(), []ray.Ray{bad, good})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := res.Paths["r/0"]; got.Reason != path.Invalid || len(got.Segments) != 0 {
		t.Errorf("ray into unsound geometry = %d segments ending %v, want none ending Invalid", len(got.Segments), got.Reason)
	}
	if got := res.Paths["r/1"]; got.Reason != path.ExitedScene || len(got.Segments) != 1 {
		t.Errorf("sibling ray = %d segments ending %v, want 1 ending ExitedScene", len(got.Segments), got.Reason)
	}
}

func TestCancelled(t *testing.T) {
	tr := newTracer(t, floorMirror)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rays := []ray.Ray{}
	for i := 0; i < 10; i++ {
		r := singleRay(vec3.T{float64(i), 5, 0}, vec3.T{0, -1, 0}, 2, 20)
		r.ID = fmt.Sprintf("r/%d", i)
		rays = append(rays, r)
	}

	res, err := tr.Run(ctx, rays)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if res == nil || len(res.Paths) != 10 {
		t.Fatalf("Run() did not return a partial result for every ray: %+v", res)
	}
	if got := res.Stats.TerminalCount[path.Cancelled]; got != 10 {
		t.Errorf("%d rays cancelled, want 10", got)
	}
}

func TestDuplicateRayIDs(t *testing.T) {
	tr := newTracer(t)
	r := singleRay(vec3.T{}, vec3.T{1, 0, 0}, 0, 1)
	if _, err := tr.Run(context.Background(), []ray.Ray{r, r}); err == nil {
		t.Errorf("Run() accepted duplicate ray IDs")
	}
}

func TestRunMatchesTrace(t *testing.T) {
	tr := newTracer(t,
		floorMirror,
		surfaceSpec{name: "ball", g: &geometry.Sphere{Center: vec3.T{0, 20, 0}, Radius: 8}, props: surface.Properties{Type: surface.TypeLens, Material: "Quartz"}},
	)
	rays, err := source.Generate(source.RunContext{LightsOn: true}, source.Config{
		Name:             "lamp",
		Power:            true,
		Spherical:        true,
		BeamNrColumns:    12,
		BeamNrRows:       6,
		MaxRayLength:     200,
		MaxNrReflections: 8,
		Sunlight:         true,
		Origin:           vec3.T{0, 5, 0},
		Direction:        vec3.T{0, 1, 0},
	})
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}

	res, err := tr.Run(context.Background(), rays)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	for _, r := range rays {
		want := tr.Trace(context.Background(), r)
		if diff := cmp.Diff(res.Paths[r.ID], want); diff != "" {
			t.Fatalf("ray %s: batch and single trace differ; diff (-batch +single)\n%s", r.ID, diff)
		}
		if len(want.Segments) > r.BouncesLeft+1 {
			t.Errorf("ray %s has %d segments", r.ID, len(want.Segments))
		}
		if want.Length() > r.MaxLength+1e-6 {
			t.Errorf("ray %s traveled %v", r.ID, want.Length())
		}
	}
}
