package linkage

import (
	"github.com/thebtf/textcluster/pkg/errs"
)

// MaxDistance returns the distance of the final merge.
func (t *Tree) MaxDistance() float64 {
	if len(t.Steps) == 0 {
		return 0
	}
	return t.Steps[len(t.Steps)-1].Distance
}

// Cut stops the agglomeration once k clusters remain and returns a label per leaf.
// Labels are numbered in order of first appearance.
func (t *Tree) Cut(k int) ([]int, error) {
	if k < 1 || k > t.N {
		return nil, errs.Range("linkage", "k", k, "1 <= k <= number of leaves")
	}
	return t.flatten(t.N - k), nil
}

// FlatAt applies every merge whose distance is at most threshold and returns a label per
// leaf, numbered in order of first appearance.
func (t *Tree) FlatAt(threshold float64) []int {
	merges := 0
	for _, s := range t.Steps {
		if s.Distance > threshold {
			break
		}
		merges++
	}
	return t.flatten(merges)
}

// flatten applies the first merges steps.
func (t *Tree) flatten(merges int) []int {
	parent := make([]int, t.N+merges)
	for i := range parent {
		parent[i] = i
	}
	for s := 0; s < merges; s++ {
		step := t.Steps[s]
		parent[step.A] = t.N + s
		parent[step.B] = t.N + s
	}

	root := func(i int) int {
		for parent[i] != i {
			i = parent[i]
		}
		return i
	}

	labels := make([]int, t.N)
	seen := make(map[int]int)
	for i := range labels {
		r := root(i)
		l, ok := seen[r]
		if !ok {
			l = len(seen)
			seen[r] = l
		}
		labels[i] = l
	}
	return labels
}

// children returns the two ids merged into cluster c, where c >= N.
func (t *Tree) children(c int) (int, int) {
	s := t.Steps[c-t.N]
	return s.A, s.B
}
