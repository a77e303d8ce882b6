package tracer

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"lightpath/path"
	"lightpath/ray"
)

// Result holds the paths of a batch of rays.
type Result struct {
	// Paths maps ray ID to that ray's path.
	Paths map[string]*path.RayPath

	// Order lists ray IDs in the order the rays were given.
	Order []string

	Stats path.Stats
}

// InOrder returns the paths in the order the rays were given.
func (r *Result) InOrder() []*path.RayPath {
	out := make([]*path.RayPath, 0, len(r.Order))
	for _, id := range r.Order {
		out = append(out, r.Paths[id])
	}
	return out
}

// Run traces every ray in parallel.  An invalid ray never affects the others.
//
// If ctx is cancelled, Run returns the partial result, with every unfinished
// ray marked Cancelled, together with the context's error.
func (t *Tracer) Run(ctx context.Context, rays []ray.Ray) (*Result, error) {
	tracer := otel.Tracer("lightpath/tracer")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Tracer.Run")
	defer span.End()

	span.SetAttributes(attribute.Int("rays", len(rays)), attribute.Int("workers", t.workers))

	seen := make(map[string]bool, len(rays))
	for _, r := range rays {
		if seen[r.ID] {
			err := fmt.Errorf("duplicate ray ID %q", r.ID)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		seen[r.ID] = true
	}

	paths := make([]*path.RayPath, len(rays))

	// Use errgroup and semaphore to limit concurrency.
	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(t.workers))
	for i := range rays {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled; rays not yet started are filled in below.
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			paths[i] = t.Trace(egCtx, rays[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("while waiting for completion of errgroup: %w", err)
	}

	result := &Result{
		Paths: make(map[string]*path.RayPath, len(rays)),
		Order: make([]string, 0, len(rays)),
	}
	for i, p := range paths {
		if p == nil {
			p = path.New(rays[i].ID)
			if err := p.Terminate(path.Cancelled); err != nil {
				glog.Errorf("Ray %s: %v", rays[i].ID, err)
			}
		}
		result.Paths[p.RayID] = p
		result.Order = append(result.Order, p.RayID)
		result.Stats.Add(p)
		recordPath(ctx, p)
	}

	span.SetAttributes(attribute.Int("segments", result.Stats.SegmentCount))
	glog.Infof("Traced %s", result.Stats.Summary())

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("while tracing %d rays: %w", len(rays), err)
	}
	return result, nil
}
