// Package linkage builds agglomerative merge trees and derives flat clusterings and
// dendrogram layouts from them.
//
// Trees use the conventional numbering: leaves are 0..n-1 and the i-th merge creates
// cluster n+i.
package linkage

import (
	"fmt"
	"math"
	"strings"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
)

// Method is an inter-cluster distance update rule.
type Method string

const (
	Ward     Method = "ward"
	Complete Method = "complete"
	Average  Method = "average"
	Single   Method = "single"
)

// Methods lists the supported linkage methods.
var Methods = []Method{Ward, Complete, Average, Single}

// ParseMethod parses a linkage method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case Ward, Complete, Average, Single:
		return m, nil
	default:
		return "", fmt.Errorf("unknown linkage method %q", s)
	}
}

// Step records one merge. A < B are the merged cluster ids, Size is the number of
// leaves under the new cluster.
type Step struct {
	A        int     `json:"a"`
	B        int     `json:"b"`
	Distance float64 `json:"distance"`
	Size     int     `json:"size"`
}

// Tree is the full merge history of n leaves: exactly n-1 steps with non-decreasing
// distances.
type Tree struct {
	N      int    `json:"n"`
	Method Method `json:"method"`
	Steps  []Step `json:"steps"`
}

// Validate checks that method and metric can be combined.
func Validate(method Method, metric distance.Metric) error {
	switch method {
	case Ward, Complete, Average, Single:
	default:
		return errs.Range("linkage", "method", string(method), "one of ward, complete, average, single")
	}
	if _, err := distance.Provider(metric); err != nil {
		return errs.Range("linkage", "metric", string(metric), "one of euclidean, cosine, manhattan")
	}
	if method == Ward && metric != distance.Euclidean {
		return errs.Range("linkage", "metric", string(metric), "euclidean when method is ward")
	}
	return nil
}

// Build clusters rows bottom-up. Fewer than two rows yields errs.ErrInsufficientData.
func Build(rows [][]float64, method Method, metric distance.Metric) (*Tree, error) {
	n := len(rows)
	if n < 2 {
		return nil, errs.InsufficientData("hierarchy needs at least 2 rows, got %d", n)
	}
	if err := Validate(method, metric); err != nil {
		return nil, err
	}

	fn, _ := distance.Provider(metric)
	if method == Ward {
		fn = distance.SquaredEuclidean
	}
	return fromDistances(distance.Pairwise(rows, fn), method), nil
}

// fromDistances runs the naive O(n^3) agglomeration over a full distance matrix, which it
// overwrites. Each merged cluster takes over the slot of its lower-indexed member; ties
// go to the first pair in slot order.
func fromDistances(d [][]float64, method Method) *Tree {
	n := len(d)
	id := make([]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range id {
		id[i] = i
		size[i] = 1
		active[i] = true
	}

	t := &Tree{N: n, Method: method, Steps: make([]Step, 0, n-1)}
	prev := 0.0
	for step := 0; step < n-1; step++ {
		minDist := math.Inf(1)
		mi, mj := -1, -1
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d[i][j] < minDist {
					minDist, mi, mj = d[i][j], i, j
				}
			}
		}
		if mi < 0 {
			// only NaN distances remain
			for i := 0; i < n && mi < 0; i++ {
				if active[i] {
					for j := i + 1; j < n; j++ {
						if active[j] {
							mi, mj, minDist = i, j, prev
							break
						}
					}
				}
			}
		}

		reported := minDist
		if method == Ward {
			reported = math.Sqrt(math.Max(minDist, 0))
		}
		reported = math.Max(reported, prev)
		prev = reported

		a, b := id[mi], id[mj]
		if a > b {
			a, b = b, a
		}
		ni, nj := float64(size[mi]), float64(size[mj])
		t.Steps = append(t.Steps, Step{A: a, B: b, Distance: reported, Size: size[mi] + size[mj]})

		for k := 0; k < n; k++ {
			if !active[k] || k == mi || k == mj {
				continue
			}
			dik, djk := d[mi][k], d[mj][k]
			var nd float64
			switch method {
			case Single:
				nd = math.Min(dik, djk)
			case Complete:
				nd = math.Max(dik, djk)
			case Average:
				nd = (ni*dik + nj*djk) / (ni + nj)
			case Ward:
				nk := float64(size[k])
				nd = ((nk+ni)*dik + (nk+nj)*djk - nk*minDist) / (nk + ni + nj)
			}
			d[mi][k] = nd
			d[k][mi] = nd
		}

		active[mj] = false
		size[mi] += size[mj]
		id[mi] = n + step
	}
	return t
}
