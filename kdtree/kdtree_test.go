package kdtree

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lightpath/aabox"
	"lightpath/vmath/vec3"
)

func unitBoxAt(x float64) aabox.AABox {
	return aabox.FromPoints(vec3.T{x, 0, 0}, vec3.T{x + 1, 1, 1})
}

func TestQueryFindsEveryMatch(t *testing.T) {
	elements := []KDElement{}
	for i := 0; i < 64; i++ {
		elements = append(elements, KDElement{Ref: i, Bounds: unitBoxAt(float64(3 * i))})
	}

	tree := NewKDTree(elements)
	tree.RefineViaSurfaceAreaHeuristic(1.0, 0.9)
	if tree.Depth() < 2 {
		t.Errorf("tree over spread-out elements was not refined")
	}

	// Select elements overlapping x in [30, 40].
	window := aabox.FromPoints(vec3.T{30, 0, 0}, vec3.T{40, 1, 1})
	selector := func(b aabox.AABox) bool {
		return b.X.Lo <= window.X.Hi && window.X.Lo <= b.X.Hi
	}

	got := []int{}
	tree.Query(selector, func(i int) { got = append(got, i) })
	sort.Ints(got)

	want := []int{10, 11, 12, 13}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad query result; diff (-got +want)\n%s", diff)
	}
}

func TestSingleElementTree(t *testing.T) {
	tree := NewKDTree([]KDElement{{Ref: 7, Bounds: unitBoxAt(0)}})
	tree.RefineViaSurfaceAreaHeuristic(1.0, 0.9)

	got := []int{}
	tree.Query(func(aabox.AABox) bool { return true }, func(i int) { got = append(got, i) })
	if diff := cmp.Diff(got, []int{7}); diff != "" {
		t.Errorf("Bad query result; diff (-got +want)\n%s", diff)
	}
}

func TestEmptyTree(t *testing.T) {
	tree := NewKDTree(nil)
	tree.RefineViaSurfaceAreaHeuristic(1.0, 0.9)
	tree.Query(func(aabox.AABox) bool { return true }, func(i int) {
		t.Errorf("visited %d in empty tree", i)
	})
}
