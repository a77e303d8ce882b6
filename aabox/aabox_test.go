package aabox

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lightpath/ray"
	"lightpath/vmath/vec3"
)

func TestFromPoints(t *testing.T) {
	got := FromPoints(vec3.T{1, -2, 3}, vec3.T{-1, 2, 0})
	want := AABox{
		X: ray.Span{Lo: -1, Hi: 1},
		Y: ray.Span{Lo: -2, Hi: 2},
		Z: ray.Span{Lo: 0, Hi: 3},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad box; diff (-got +want)\n%s", diff)
	}
}

func TestRayTestAABox(t *testing.T) {
	box := FromPoints(vec3.T{-1, -1, -1}, vec3.T{1, 1, 1})

	testCases := []struct {
		desc     string
		query    ray.Segment
		wantMiss bool
		want     ray.Span
	}{
		{
			desc: "straight through",
			query: ray.Segment{
				TheRay:     ray.Ray{Point: vec3.T{-5, 0, 0}, Slope: vec3.T{1, 0, 0}},
				TheSegment: ray.Span{Lo: 0, Hi: math.Inf(1)},
			},
			want: ray.Span{Lo: 4, Hi: 6},
		},
		{
			desc: "parallel outside",
			query: ray.Segment{
				TheRay:     ray.Ray{Point: vec3.T{-5, 3, 0}, Slope: vec3.T{1, 0, 0}},
				TheSegment: ray.Span{Lo: 0, Hi: math.Inf(1)},
			},
			wantMiss: true,
		},
		{
			desc: "diagonal miss",
			query: ray.Segment{
				TheRay:     ray.Ray{Point: vec3.T{-5, 3, 0}, Slope: vec3.Normalize(vec3.T{1, 1, 0})},
				TheSegment: ray.Span{Lo: 0, Hi: math.Inf(1)},
			},
			wantMiss: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := RayTestAABox(tc.query, box)
			if tc.wantMiss {
				if !got.IsNaN() {
					t.Errorf("RayTestAABox() = %v, want miss", got)
				}
				return
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("Bad cover; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestRaySegmentHitsAABox(t *testing.T) {
	box := FromPoints(vec3.T{-1, -1, -1}, vec3.T{1, 1, 1})
	q := ray.Segment{
		TheRay:     ray.Ray{Point: vec3.T{-5, 0, 0}, Slope: vec3.T{1, 0, 0}},
		TheSegment: ray.Span{Lo: 0, Hi: 3},
	}
	if RaySegmentHitsAABox(q, box) {
		t.Errorf("short segment should stop before the box")
	}
	q.TheSegment.Hi = 4.5
	if !RaySegmentHitsAABox(q, box) {
		t.Errorf("segment reaching into the box should hit it")
	}
}
