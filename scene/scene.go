// Package scene holds the immutable set of optical surfaces a run traces
// against, and finds where rays strike them.
package scene

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lightpath/aabox"
	"lightpath/contact"
	"lightpath/geometry"
	"lightpath/kdtree"
	"lightpath/ray"
	"lightpath/surface"
	"lightpath/vmath/vec3"
)

const (
	// Epsilon is the minimum distance a ray travels before it can strike a
	// surface, so that a ray leaving a surface does not immediately hit it
	// again.
	Epsilon = 1.0 / 1677216

	// TieTolerance is the distance within which two hits count as
	// simultaneous.  The surface registered first wins a tie.
	TieTolerance = 1e-9

	// DefaultAmbientIndex is the refraction index of the space between
	// surfaces.
	DefaultAmbientIndex = 1.0
)

// Builder collects surfaces for a Snapshot.
type Builder struct {
	surfaces     []*surface.Surface
	ambientIndex float64
}

func NewBuilder() *Builder {
	return &Builder{
		ambientIndex: DefaultAmbientIndex,
	}
}

func (b *Builder) SetAmbientIndex(n float64) {
	b.ambientIndex = n
}

// Add validates and classifies a surface, and registers it.  It returns the
// surface's registration index.
func (b *Builder) Add(name string, g geometry.Geometry, p surface.Properties) (int, error) {
	if g == nil {
		return -1, fmt.Errorf("surface %q has no geometry", name)
	}
	if err := g.Validate(); err != nil {
		return -1, fmt.Errorf("while validating geometry of surface %q: %w", name, err)
	}

	index := len(b.surfaces)
	s, err := surface.Classify(index, name, g, p)
	if err != nil {
		return -1, err
	}
	b.surfaces = append(b.surfaces, s)
	return index, nil
}

// Freeze builds the snapshot.  The builder may be reused afterwards without
// affecting the snapshot.
func (b *Builder) Freeze(ctx context.Context) (*Snapshot, error) {
	tracer := otel.Tracer("lightpath/scene")
	var span trace.Span
	_, span = tracer.Start(ctx, "Builder.Freeze")
	defer span.End()

	if !(b.ambientIndex > 0) || math.IsInf(b.ambientIndex, 0) {
		return nil, fmt.Errorf("%w: ambient refraction index %v", surface.ErrInvalidMaterial, b.ambientIndex)
	}

	s := &Snapshot{
		surfaces:     append([]*surface.Surface(nil), b.surfaces...),
		ambientIndex: b.ambientIndex,
	}

	kdElements := []kdtree.KDElement{}
	for i, surf := range s.surfaces {
		if _, ok := surf.Role.(*surface.Inert); ok {
			continue
		}
		bounds := surf.Geometry.GetAABox()
		if !bounds.IsFinite() {
			s.unbounded = append(s.unbounded, i)
			continue
		}
		kdElements = append(kdElements, kdtree.KDElement{Ref: i, Bounds: bounds})
	}

	s.tree = kdtree.NewKDTree(kdElements)
	s.tree.RefineViaSurfaceAreaHeuristic(1.0, 0.9)

	span.SetAttributes(
		attribute.Int("surfaces", len(s.surfaces)),
		attribute.Int("bounded", len(kdElements)),
		attribute.Int("unbounded", len(s.unbounded)),
		attribute.Int("tree_depth", s.tree.Depth()),
	)
	glog.V(1).Infof("Froze scene: %d surfaces (%d bounded, %d unbounded), tree depth %d", len(s.surfaces), len(kdElements), len(s.unbounded), s.tree.Depth())

	return s, nil
}

// Snapshot is an immutable scene.  It is safe for concurrent use.
type Snapshot struct {
	surfaces     []*surface.Surface
	ambientIndex float64

	tree      *kdtree.KDTree
	unbounded []int
}

// Len is the number of registered surfaces.
func (s *Snapshot) Len() int {
	return len(s.surfaces)
}

// Surface returns the surface registered at index i.
func (s *Snapshot) Surface(i int) *surface.Surface {
	return s.surfaces[i]
}

func (s *Snapshot) AmbientIndex() float64 {
	return s.ambientIndex
}

// NormalAt returns the outward unit normal of surface i at p.
func (s *Snapshot) NormalAt(i int, p vec3.T) (vec3.T, error) {
	if i < 0 || i >= len(s.surfaces) {
		return vec3.T{}, fmt.Errorf("no surface %d", i)
	}
	return s.surfaces[i].Geometry.NormalAt(p)
}

// Trace finds the nearest surface the ray strikes within its remaining
// length.
func (s *Snapshot) Trace(r ray.Ray) (contact.Contact, bool, error) {
	return s.NearestIntersection(r, r.Remaining())
}

// NearestIntersection finds the nearest optical surface the ray strikes at a
// distance in (Epsilon, maxDistance].  It returns false if there is none.
// Inert surfaces are never struck.
//
// An error wrapping geometry.ErrDegenerateGeometry means the nearest candidate
// hit could not be computed reliably.
func (s *Snapshot) NearestIntersection(r ray.Ray, maxDistance float64) (contact.Contact, bool, error) {
	if !(maxDistance > Epsilon) {
		return contact.ContactNaN(), false, nil
	}

	query := ray.Segment{
		TheRay:     r,
		TheSegment: ray.Span{Lo: Epsilon, Hi: maxDistance},
	}

	best := contact.ContactNaN()
	found := false

	var degenerate error
	degenerateT := math.Inf(1)

	consider := func(i int, c contact.Contact) {
		if c.IsNaN() || c.T <= Epsilon || c.T > query.TheSegment.Hi {
			return
		}
		if err := geometry.Check(c); err != nil {
			if c.T < degenerateT {
				degenerateT = c.T
				degenerate = fmt.Errorf("while intersecting surface %d (%q): %w", i, s.surfaces[i].Name, err)
			}
			return
		}

		switch {
		case !found || c.T < best.T-TieTolerance:
		case c.T <= best.T+TieTolerance && i < best.Surface:
		default:
			return
		}

		c.Surface = i
		best = c
		found = true
		query.TheSegment.Hi = math.Min(maxDistance, best.T+TieTolerance)
	}

	visit := func(i int) {
		g := s.surfaces[i].Geometry
		consider(i, g.RayInto(query))
		consider(i, g.RayExit(query))
	}

	for _, i := range s.unbounded {
		visit(i)
	}

	selector := func(b aabox.AABox) bool {
		return aabox.RaySegmentHitsAABox(query, b)
	}
	s.tree.Query(selector, visit)

	if degenerate != nil && (!found || degenerateT <= best.T+TieTolerance) {
		return contact.ContactNaN(), false, degenerate
	}
	return best, found, nil
}
