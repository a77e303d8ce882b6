package kdtree

import (
	"math"
	"math/rand"

	"lightpath/aabox"
)

type KDElement struct {
	// A handle back into some other storage array.
	Ref int

	// The bounds of this element.
	Bounds aabox.AABox
}

type KDNode struct {
	Bounds aabox.AABox

	Elements []KDElement

	LoChild *KDNode
	HiChild *KDNode
}

type split struct {
	objective  float64
	preceding  []KDElement
	succeeding []KDElement
	loBox      aabox.AABox
	hiBox      aabox.AABox
}

func boundsOf(elements []KDElement) aabox.AABox {
	box := aabox.AccumZeroAABox()
	for _, element := range elements {
		box = aabox.MinContainingAABox(box, element.Bounds)
	}
	return box
}

func (cur *KDNode) trialSplit(axis int, rng *rand.Rand) split {
	trialCut := cur.Elements[rng.Intn(len(cur.Elements))].Bounds.Axis(axis).Hi

	s := split{}
	for _, element := range cur.Elements {
		if element.Bounds.Axis(axis).Hi < trialCut {
			s.preceding = append(s.preceding, element)
		} else {
			s.succeeding = append(s.succeeding, element)
		}
	}

	s.loBox = boundsOf(s.preceding)
	s.hiBox = boundsOf(s.succeeding)

	if len(s.preceding) != 0 {
		s.objective += float64(len(s.preceding)) * s.loBox.SurfaceArea()
	}
	if len(s.succeeding) != 0 {
		s.objective += float64(len(s.succeeding)) * s.hiBox.SurfaceArea()
	}
	return s
}

func (cur *KDNode) refineViaSurfaceAreaHeuristic(splitCost, terminationThreshold float64, rng *rand.Rand) {
	best := split{objective: math.Inf(1)}

	// Check 5 random splits on each axis.
	for axis := 0; axis < 3; axis++ {
		for i := 0; i < 5; i++ {
			s := cur.trialSplit(axis, rng)
			if s.objective < best.objective {
				best = s
			}
		}
	}

	// A split that leaves everything on one side makes no progress.
	if len(best.preceding) == 0 || len(best.succeeding) == 0 {
		return
	}

	// Now we have a pretty good split, but we need to check that it's a
	// good-enough improvement over just not splitting.
	parentObjective := float64(len(cur.Elements)) * cur.Bounds.SurfaceArea()
	if best.objective+splitCost > terminationThreshold*parentObjective {
		return
	}

	cur.LoChild = &KDNode{
		Bounds:   best.loBox,
		Elements: best.preceding,
	}
	cur.HiChild = &KDNode{
		Bounds:   best.hiBox,
		Elements: best.succeeding,
	}

	// All of cur's elements have been divided among its children.
	cur.Elements = nil
}

type KDTree struct {
	Root *KDNode
}

// NewKDTree builds a single-node tree holding every element.  Call
// RefineViaSurfaceAreaHeuristic to split it.
func NewKDTree(elements []KDElement) *KDTree {
	return &KDTree{
		Root: &KDNode{
			Bounds:   boundsOf(elements),
			Elements: elements,
		},
	}
}

// RefineViaSurfaceAreaHeuristic splits nodes while the surface area heuristic
// says a split pays for itself.  The random trial cuts are seeded with a fixed
// value, so the same elements always yield the same tree.
func (t *KDTree) RefineViaSurfaceAreaHeuristic(splitCost, threshold float64) {
	rng := rand.New(rand.NewSource(12345))

	workStack := []*KDNode{t.Root}
	for len(workStack) != 0 {
		cur := workStack[len(workStack)-1]
		workStack = workStack[:len(workStack)-1]

		if len(cur.Elements) < 2 {
			continue
		}

		cur.refineViaSurfaceAreaHeuristic(splitCost, threshold, rng)

		if cur.LoChild != nil {
			workStack = append(workStack, cur.LoChild)
		}
		if cur.HiChild != nil {
			workStack = append(workStack, cur.HiChild)
		}
	}
}

type KDSelector func(b aabox.AABox) bool
type KDVisitor func(i int)

// Query calls visitor for the Ref of every element whose bounds (and whose
// enclosing nodes' bounds) satisfy selector.  Visit order is unspecified.
func (t *KDTree) Query(selector KDSelector, visitor KDVisitor) {
	workStack := []*KDNode{t.Root}
	for len(workStack) != 0 {
		cur := workStack[len(workStack)-1]
		workStack = workStack[:len(workStack)-1]

		if !selector(cur.Bounds) {
			continue
		}

		for i := range cur.Elements {
			if !selector(cur.Elements[i].Bounds) {
				continue
			}
			visitor(cur.Elements[i].Ref)
		}

		if cur.LoChild != nil {
			workStack = append(workStack, cur.LoChild)
		}
		if cur.HiChild != nil {
			workStack = append(workStack, cur.HiChild)
		}
	}
}

// Depth returns the number of levels in the tree.
func (t *KDTree) Depth() int {
	var depth func(n *KDNode) int
	depth = func(n *KDNode) int {
		if n == nil {
			return 0
		}
		lo, hi := depth(n.LoChild), depth(n.HiChild)
		if hi > lo {
			lo = hi
		}
		return lo + 1
	}
	return depth(t.Root)
}
