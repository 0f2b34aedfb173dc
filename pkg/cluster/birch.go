package cluster

import (
	"fmt"
	"math"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/textvec"
)

type birch struct {
	threshold float64
	branching int
	k         int
}

func newBIRCH(p Params) (Strategy, error) {
	b := &birch{threshold: p.Threshold, branching: p.BranchingFactor, k: p.K}
	if !(b.threshold > 0) || math.IsInf(b.threshold, 0) {
		return nil, errs.Range(string(BIRCH), "threshold", p.Threshold, "threshold > 0")
	}
	if b.branching < 2 {
		return nil, errs.Range(string(BIRCH), "branching_factor", p.BranchingFactor, "branching_factor >= 2")
	}
	if b.k < 0 || b.k == 1 {
		return nil, errs.Range(string(BIRCH), "k", p.K, "k == 0 or k >= 2")
	}
	return b, nil
}

func (b *birch) Algorithm() Algorithm { return BIRCH }

// Fit summarizes the documents into a CF tree. Without k each leaf subcluster is a
// cluster; with k the leaf centroids are merged by ward linkage down to k groups. Each
// document takes the label of its nearest leaf centroid.
func (b *birch) Fit(m *textvec.Matrix) (Labels, error) {
	n := m.Rows()
	if n < 2 {
		return nil, errs.InsufficientData("birch needs at least 2 documents, got %d", n)
	}

	x := m.DenseRows()
	tree := newCFTree(b.threshold, b.branching)
	for _, p := range x {
		tree.insert(p)
	}
	leaves := tree.leafSubclusters()
	centroids := make([][]float64, len(leaves))
	for i, sc := range leaves {
		centroids[i] = sc.centroid()
	}

	groups := make([]int, len(centroids))
	for i := range groups {
		groups[i] = i
	}
	if b.k > 0 {
		if b.k > len(centroids) {
			return nil, errs.Range(string(BIRCH), "k", b.k,
				fmt.Sprintf("2 <= k <= %d leaf subclusters (lower threshold for more)", len(centroids)))
		}
		lt, err := linkage.Build(centroids, linkage.Ward, distance.Euclidean)
		if err != nil {
			return nil, err
		}
		if groups, err = lt.Cut(b.k); err != nil {
			return nil, err
		}
	}

	labels := make([]int, n)
	for i, p := range x {
		c, _ := nearest(p, centroids)
		labels[i] = groups[c]
	}
	return Canonicalize(labels), nil
}

// cf is a clustering feature: count, linear sum and squared sum of the points it
// summarizes. Non-leaf entries also point at the node holding their children.
type cf struct {
	n     int
	ls    []float64
	ss    float64
	child *cfNode
}

func newCF(p []float64) *cf {
	return &cf{n: 1, ls: clone(p), ss: dot(p, p)}
}

func (c *cf) centroid() []float64 {
	out := make([]float64, len(c.ls))
	for i, v := range c.ls {
		out[i] = v / float64(c.n)
	}
	return out
}

func (c *cf) add(o *cf) {
	c.n += o.n
	for i, v := range o.ls {
		c.ls[i] += v
	}
	c.ss += o.ss
}

// absorb merges o into c if the merged radius stays within threshold.
func (c *cf) absorb(o *cf, threshold float64) bool {
	n := float64(c.n + o.n)
	var centroidSq float64
	for i := range c.ls {
		v := (c.ls[i] + o.ls[i]) / n
		centroidSq += v * v
	}
	radiusSq := (c.ss+o.ss)/n - centroidSq
	if radiusSq > threshold*threshold {
		return false
	}
	c.add(o)
	return true
}

type cfNode struct {
	leaf    bool
	entries []*cf
}

type cfTree struct {
	root      *cfNode
	threshold float64
	branching int
}

func newCFTree(threshold float64, branching int) *cfTree {
	return &cfTree{root: &cfNode{leaf: true}, threshold: threshold, branching: branching}
}

func (t *cfTree) insert(p []float64) {
	if !t.insertInto(t.root, newCF(p)) {
		return
	}
	left, right := t.split(t.root)
	t.root = &cfNode{entries: []*cf{left, right}}
}

// insertInto descends to the closest leaf entry and reports whether node overflowed.
func (t *cfTree) insertInto(node *cfNode, sc *cf) bool {
	if len(node.entries) == 0 {
		node.entries = append(node.entries, sc)
		return false
	}

	ci := t.closest(node, sc)
	closest := node.entries[ci]
	if closest.child != nil {
		if !t.insertInto(closest.child, sc) {
			closest.add(sc)
			return false
		}
		left, right := t.split(closest.child)
		node.entries[ci] = left
		node.entries = append(node.entries, right)
		return len(node.entries) > t.branching
	}

	if closest.absorb(sc, t.threshold) {
		return false
	}
	node.entries = append(node.entries, sc)
	return len(node.entries) > t.branching
}

func (t *cfTree) closest(node *cfNode, sc *cf) int {
	p := sc.centroid()
	best, bestD := 0, math.Inf(1)
	for i, e := range node.entries {
		if d := distance.SquaredEuclidean(p, e.centroid()); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// split divides an overfull node around its two most distant entries and returns the
// parent entries for the halves.
func (t *cfTree) split(node *cfNode) (*cf, *cf) {
	centroids := make([][]float64, len(node.entries))
	for i, e := range node.entries {
		centroids[i] = e.centroid()
	}
	fa, fb, far := 0, 1, -1.0
	for i := range centroids {
		for j := i + 1; j < len(centroids); j++ {
			if d := distance.SquaredEuclidean(centroids[i], centroids[j]); d > far {
				fa, fb, far = i, j, d
			}
		}
	}

	dim := len(centroids[0])
	left := &cf{ls: make([]float64, dim), child: &cfNode{leaf: node.leaf}}
	right := &cf{ls: make([]float64, dim), child: &cfNode{leaf: node.leaf}}
	for i, e := range node.entries {
		dest := right
		if i == fa || (i != fb && distance.SquaredEuclidean(centroids[i], centroids[fa]) < distance.SquaredEuclidean(centroids[i], centroids[fb])) {
			dest = left
		}
		dest.child.entries = append(dest.child.entries, e)
		dest.add(e)
	}
	return left, right
}

// leafSubclusters lists the entries of every leaf node, left to right.
func (t *cfTree) leafSubclusters() []*cf {
	var out []*cf
	var walk func(*cfNode)
	walk = func(node *cfNode) {
		if node.leaf {
			out = append(out, node.entries...)
			return
		}
		for _, e := range node.entries {
			walk(e.child)
		}
	}
	walk(t.root)
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
