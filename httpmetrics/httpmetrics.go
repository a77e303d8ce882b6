// Package httpmetrics counts and times the requests an http.Handler serves.
package httpmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	pathKey   = tag.MustNewKey("path")
	methodKey = tag.MustNewKey("method")
	codeKey   = tag.MustNewKey("code")
)

type Wrapper struct {
	requestCount       *stats.Int64Measure
	requestLatency     *stats.Float64Measure
	requestCountView   *view.View
	requestLatencyView *view.View

	inner http.Handler
}

// New wraps inner.  Measures are named with prefix, so that several wrappers
// can be registered in one process.
func New(prefix string, inner http.Handler) *Wrapper {
	r := &Wrapper{}

	r.requestCount = stats.Int64(prefix+"/requests", "Requests handled", stats.UnitDimensionless)
	r.requestCountView = &view.View{
		Name:        prefix + "/requests",
		Description: "Counter of requests that have been handled",

		TagKeys: []tag.Key{pathKey, methodKey, codeKey},

		Measure:     r.requestCount,
		Aggregation: view.Count(),
	}

	r.requestLatency = stats.Float64(prefix+"/latency", "Request latency", stats.UnitMilliseconds)
	r.requestLatencyView = &view.View{
		Name:        prefix + "/latency",
		Description: "Distribution of request latencies",

		TagKeys: []tag.Key{pathKey, methodKey, codeKey},

		Measure:     r.requestLatency,
		Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 10000),
	}

	r.inner = inner

	return r
}

func (h *Wrapper) RegisterMetrics() error {
	return view.Register(h.requestCountView, h.requestLatencyView)
}

func (h *Wrapper) UnregisterMetrics() {
	view.Unregister(h.requestCountView, h.requestLatencyView)
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Wrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

	h.inner.ServeHTTP(rec, r)

	elapsed := time.Since(start)
	glog.V(1).Infof("Served method=%s path=%q code=%d elapsed=%v useragent=%q", r.Method, r.URL.Path, rec.code, elapsed, r.UserAgent())

	stats.RecordWithOptions(
		r.Context(),
		stats.WithTags(
			tag.Upsert(pathKey, r.URL.Path),
			tag.Upsert(methodKey, r.Method),
			tag.Upsert(codeKey, strconv.Itoa(rec.code)),
		),
		stats.WithMeasurements(
			h.requestCount.M(1),
			h.requestLatency.M(float64(elapsed)/float64(time.Millisecond)),
		))
}
