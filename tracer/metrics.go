package tracer

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"lightpath/path"
)

var (
	rayCount     = stats.Int64("lightpath/rays", "Rays traced", stats.UnitDimensionless)
	segmentCount = stats.Int64("lightpath/segments", "Segments in a traced ray's path", stats.UnitDimensionless)

	reasonKey = tag.MustNewKey("reason")

	rayCountView = &view.View{
		Name:        "lightpath/rays",
		Description: "Counter of rays traced, by terminal reason",
		TagKeys:     []tag.Key{reasonKey},
		Measure:     rayCount,
		Aggregation: view.Count(),
	}

	segmentCountView = &view.View{
		Name:        "lightpath/segments",
		Description: "Distribution of path segment counts, by terminal reason",
		TagKeys:     []tag.Key{reasonKey},
		Measure:     segmentCount,
		Aggregation: view.Distribution(1, 2, 4, 8, 16, 32, 64, 128, 256),
	}
)

// RegisterMetrics registers the tracer's views with OpenCensus.
func RegisterMetrics() error {
	return view.Register(rayCountView, segmentCountView)
}

func recordPath(ctx context.Context, p *path.RayPath) {
	stats.RecordWithOptions(
		ctx,
		stats.WithTags(tag.Upsert(reasonKey, p.Reason.String())),
		stats.WithMeasurements(rayCount.M(1), segmentCount.M(int64(len(p.Segments)))),
	)
}
