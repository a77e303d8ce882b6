// Package path records the route a ray took through a scene.
package path

import (
	"errors"
	"fmt"
	"sort"

	"lightpath/vmath/vec3"
)

// Terminal is the reason a ray stopped propagating.
type Terminal int

const (
	// Active means the ray has not terminated yet.
	Active Terminal = iota
	Absorbed
	MaxReflectionsReached
	MaxLengthReached
	ExitedScene
	Invalid
	Cancelled
)

var terminalNames = map[Terminal]string{
	Active:                "Active",
	Absorbed:              "Absorbed",
	MaxReflectionsReached: "MaxReflectionsReached",
	MaxLengthReached:      "MaxLengthReached",
	ExitedScene:           "ExitedScene",
	Invalid:               "Invalid",
	Cancelled:             "Cancelled",
}

func (t Terminal) String() string {
	if name, ok := terminalNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Terminal(%d)", int(t))
}

func ParseTerminal(s string) (Terminal, error) {
	for t, name := range terminalNames {
		if name == s {
			return t, nil
		}
	}
	return Active, fmt.Errorf("unknown terminal reason %q", s)
}

func (t Terminal) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Terminal) UnmarshalText(b []byte) error {
	parsed, err := ParseTerminal(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Segment is one straight piece of a ray's path.
type Segment struct {
	Start      vec3.T  `json:"start"`
	End        vec3.T  `json:"end"`
	Direction  vec3.T  `json:"direction"`
	Wavelength float64 `json:"wavelength,omitempty"`

	// Surface is the index of the surface the segment ends on, or -1.
	Surface int `json:"surface"`

	// Hidden marks a segment that should not be drawn.
	Hidden bool `json:"hidden,omitempty"`
}

func (s *Segment) Length() float64 {
	return vec3.Distance(s.Start, s.End)
}

var (
	ErrTerminated    = errors.New("path already terminated")
	ErrNotTerminated = errors.New("cannot terminate a path as Active")
)

// RayPath is the ordered list of segments traversed by one ray, and the reason
// it stopped.
type RayPath struct {
	RayID    string    `json:"rayId"`
	Segments []Segment `json:"segments"`
	Reason   Terminal  `json:"reason"`
}

func New(rayID string) *RayPath {
	return &RayPath{RayID: rayID}
}

// Append adds a segment.  Segments cannot be added once the path has
// terminated.
func (p *RayPath) Append(s Segment) error {
	if p.Reason != Active {
		return fmt.Errorf("while appending to path %q: %w", p.RayID, ErrTerminated)
	}
	p.Segments = append(p.Segments, s)
	return nil
}

// Terminate records why the ray stopped.  It may be called only once.
func (p *RayPath) Terminate(reason Terminal) error {
	if reason == Active {
		return ErrNotTerminated
	}
	if p.Reason != Active {
		return fmt.Errorf("while terminating path %q as %v: %w (was %v)", p.RayID, reason, ErrTerminated, p.Reason)
	}
	p.Reason = reason
	return nil
}

// Length is the total length of all segments.
func (p *RayPath) Length() float64 {
	total := 0.0
	for i := range p.Segments {
		total += p.Segments[i].Length()
	}
	return total
}

// Points returns the polyline through the path: the start of the first
// segment followed by the end of every segment.
func (p *RayPath) Points() []vec3.T {
	if len(p.Segments) == 0 {
		return nil
	}
	points := []vec3.T{p.Segments[0].Start}
	for i := range p.Segments {
		points = append(points, p.Segments[i].End)
	}
	return points
}

// Stats summarizes a batch of paths.
type Stats struct {
	RayCount      int              `json:"rayCount"`
	SegmentCount  int              `json:"segmentCount"`
	TerminalCount map[Terminal]int `json:"terminalCount"`
}

func (s *Stats) Add(p *RayPath) {
	if s.TerminalCount == nil {
		s.TerminalCount = map[Terminal]int{}
	}
	s.RayCount++
	s.SegmentCount += len(p.Segments)
	s.TerminalCount[p.Reason]++
}

// Merge folds other into s.
func (s *Stats) Merge(other Stats) {
	if s.TerminalCount == nil {
		s.TerminalCount = map[Terminal]int{}
	}
	s.RayCount += other.RayCount
	s.SegmentCount += other.SegmentCount
	for t, n := range other.TerminalCount {
		s.TerminalCount[t] += n
	}
}

// Summary renders the histogram in a stable order, e.g.
// "rays=3 Absorbed=1 ExitedScene=2".
func (s *Stats) Summary() string {
	reasons := []Terminal{}
	for t := range s.TerminalCount {
		reasons = append(reasons, t)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	out := fmt.Sprintf("rays=%d", s.RayCount)
	for _, t := range reasons {
		out += fmt.Sprintf(" %v=%d", t, s.TerminalCount[t])
	}
	return out
}
