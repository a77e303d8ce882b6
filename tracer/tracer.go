// Package tracer propagates rays through a scene snapshot and records their
// paths.
package tracer

import (
	"context"
	"math"
	"runtime"

	"github.com/golang/glog"

	"lightpath/interaction"
	"lightpath/path"
	"lightpath/ray"
	"lightpath/scene"
	"lightpath/vmath/vec3"
)

// Tracer traces rays against one scene snapshot.  It is safe for concurrent
// use.
type Tracer struct {
	snap    *scene.Snapshot
	workers int
}

type TracerOpt func(*Tracer)

// WithWorkers bounds the number of rays traced at once by Run.
func WithWorkers(n int) TracerOpt {
	return func(t *Tracer) {
		if n > 0 {
			t.workers = n
		}
	}
}

func New(snap *scene.Snapshot, opts ...TracerOpt) *Tracer {
	t := &Tracer{
		snap:    snap,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trace follows one ray until it terminates.  The returned path always has a
// terminal reason.  Cancelling ctx stops the ray at its next step with reason
// Cancelled.
func (t *Tracer) Trace(ctx context.Context, r ray.Ray) *path.RayPath {
	p := path.New(r.ID)
	reason := t.propagate(ctx, r, p)
	if err := p.Terminate(reason); err != nil {
		glog.Errorf("Ray %s: %v", r.ID, err)
	}
	return p
}

func (t *Tracer) propagate(ctx context.Context, r ray.Ray, p *path.RayPath) path.Terminal {
	if err := r.Validate(); err != nil {
		glog.V(1).Infof("Ray %s is invalid: %v", r.ID, err)
		return path.Invalid
	}

	first := true
	for {
		if ctx.Err() != nil {
			return path.Cancelled
		}

		remaining := r.Remaining()
		if remaining <= scene.Epsilon {
			return path.MaxLengthReached
		}

		c, ok, err := t.snap.Trace(r)
		if err != nil {
			glog.V(1).Infof("Ray %s stopped at %v: %v", r.ID, r.Point, err)
			return path.Invalid
		}

		if !ok {
			t.appendSegment(p, r, r.Eval(remaining), -1, first)
			if t.blockedBeyond(r) {
				return path.MaxLengthReached
			}
			return path.ExitedScene
		}

		t.appendSegment(p, r, c.P, c.Surface, first)
		first = false

		out, err := interaction.Resolve(r, c, t.snap.Surface(c.Surface), t.snap.AmbientIndex())
		if err != nil {
			glog.V(1).Infof("Ray %s stopped at %v: %v", r.ID, c.P, err)
			return path.Invalid
		}
		glog.V(3).Infof("Ray %s: %v at surface %d, t=%v", r.ID, out.Kind, c.Surface, c.T)

		if out.Kind == interaction.Absorb {
			return path.Absorbed
		}
		if r.BouncesLeft == 0 {
			return path.MaxReflectionsReached
		}
		r = out.Next
	}
}

func (t *Tracer) appendSegment(p *path.RayPath, r ray.Ray, end vec3.T, surfaceIndex int, first bool) {
	err := p.Append(path.Segment{
		Start:      r.Point,
		End:        end,
		Direction:  r.Slope,
		Wavelength: r.Wavelength,
		Surface:    surfaceIndex,
		Hidden:     first && r.HideFirstPart,
	})
	if err != nil {
		glog.Errorf("Ray %s: %v", r.ID, err)
	}
}

// blockedBeyond reports whether the ray would have struck something had it not
// run out of length.
func (t *Tracer) blockedBeyond(r ray.Ray) bool {
	_, ok, err := t.snap.NearestIntersection(r, math.Inf(1))
	return ok || err != nil
}
