// Package server exposes the tracer over HTTP.  Clients POST a scene file and
// get back every ray's path, ready to draw.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"lightpath/path"
	"lightpath/pathstore"
	"lightpath/scenepack"
	"lightpath/spectrum"
	"lightpath/tracer"
)

const maxSceneBytes = 4 << 20

type Server struct {
	limiter *rate.Limiter
	maxRays int
	workers int
	store   *pathstore.Store
}

type Opt func(*Server)

// WithRequestsPerSecond limits how often traces may be requested.  Zero or
// less means unlimited.
func WithRequestsPerSecond(rps float64) Opt {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithMaxRays rejects scenes that emit more than n rays.
func WithMaxRays(n int) Opt {
	return func(s *Server) {
		s.maxRays = n
	}
}

func WithWorkers(n int) Opt {
	return func(s *Server) {
		s.workers = n
	}
}

// WithStore records every traced run in store.
func WithStore(store *pathstore.Store) Opt {
	return func(s *Server) {
		s.store = store
	}
}

func New(opts ...Opt) *Server {
	s := &Server{
		limiter: rate.NewLimiter(rate.Inf, 1),
		maxRays: 100000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register installs the server's endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/trace", s.serveTrace)
	if s.store != nil {
		mux.HandleFunc("GET /v1/runs", s.serveListRuns)
		mux.HandleFunc("GET /v1/runs/{id}", s.serveGetRun)
	}
}

type segmentView struct {
	path.Segment
	Color spectrum.RGB `json:"color"`
}

type pathView struct {
	RayID    string        `json:"rayId"`
	Segments []segmentView `json:"segments"`
	Reason   path.Terminal `json:"reason"`
}

func newPathView(p *path.RayPath) pathView {
	v := pathView{
		RayID:    p.RayID,
		Segments: make([]segmentView, 0, len(p.Segments)),
		Reason:   p.Reason,
	}
	for _, seg := range p.Segments {
		v.Segments = append(v.Segments, segmentView{Segment: seg, Color: spectrum.ToRGB(seg.Wavelength)})
	}
	return v
}

type traceResponse struct {
	RunID uint64     `json:"runId,omitempty"`
	Paths []pathView `json:"paths"`
	Stats path.Stats `json:"stats"`
}

func (s *Server) serveTrace(w http.ResponseWriter, r *http.Request) {
	tr := otel.Tracer("lightpath/server")
	ctx, span := tr.Start(r.Context(), "Server.Trace")
	defer span.End()

	if !s.limiter.Allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	reqBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSceneBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "scene file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sc, err := scenepack.Parse(ctx, reqBody)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}

	rays, err := sc.Rays()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("rays", len(rays)))

	if s.maxRays > 0 && len(rays) > s.maxRays {
		http.Error(w, fmt.Sprintf("scene emits %d rays, limit is %d", len(rays), s.maxRays), http.StatusRequestEntityTooLarge)
		return
	}

	result, err := tracer.New(sc.Snapshot, tracer.WithWorkers(s.workers)).Run(ctx, rays)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		glog.Errorf("Trace of %d rays failed: %v", len(rays), err)
		http.Error(w, "trace cancelled", http.StatusServiceUnavailable)
		return
	}

	response := &traceResponse{
		Paths: make([]pathView, 0, len(rays)),
		Stats: result.Stats,
	}
	for _, p := range result.InOrder() {
		response.Paths = append(response.Paths, newPathView(p))
	}

	if s.store != nil {
		id, err := s.store.PutRun(&pathstore.Run{Scene: r.URL.Query().Get("name"), Stats: result.Stats}, result.InOrder())
		if err != nil {
			glog.Errorf("While storing run: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		response.RunID = id
		span.SetAttributes(attribute.Int64("run", int64(id)))
	}

	writeJSON(w, response)
}

func (s *Server) serveListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns()
	if err != nil {
		glog.Errorf("While listing runs: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

type runResponse struct {
	Run   *pathstore.Run `json:"run"`
	Paths []pathView     `json:"paths"`
}

func (s *Server) serveGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad request: run ID must be a number", http.StatusBadRequest)
		return
	}

	run, paths, err := s.store.GetRun(id)
	if errors.Is(err, pathstore.ErrNotFound) {
		http.Error(w, fmt.Sprintf("run %d not found", id), http.StatusNotFound)
		return
	} else if err != nil {
		glog.Errorf("While reading run %d: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	response := &runResponse{Run: run, Paths: make([]pathView, 0, len(paths))}
	for _, p := range paths {
		response.Paths = append(response.Paths, newPathView(p))
	}
	writeJSON(w, response)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	respBody, err := json.Marshal(v)
	if err != nil {
		glog.Errorf("While marshaling response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.Write(respBody)
}
