package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/textvec"
)

type kmeans struct {
	k       int
	seed    int64
	maxIter int
	nInit   int
}

func newKMeans(p Params) (Strategy, error) {
	km := &kmeans{k: p.K, seed: p.Seed, maxIter: p.MaxIter, nInit: p.NInit}
	if km.maxIter < 1 {
		return nil, errs.Range(string(KMeans), "max_iter", p.MaxIter, "max_iter >= 1")
	}
	if km.nInit < 1 {
		return nil, errs.Range(string(KMeans), "n_init", p.NInit, "n_init >= 1")
	}
	if km.k < 2 {
		return nil, errs.Range(string(KMeans), "k", p.K, "k >= 2")
	}
	return km, nil
}

func (km *kmeans) Algorithm() Algorithm { return KMeans }

// Fit runs n_init seeded k-means++ restarts and keeps the lowest inertia.
func (km *kmeans) Fit(m *textvec.Matrix) (Labels, error) {
	n := m.Rows()
	if err := checkK(KMeans, km.k, n); err != nil {
		return nil, err
	}

	x := m.DenseRows()
	rng := rand.New(rand.NewSource(km.seed))

	var (
		best        []int
		bestInertia = math.Inf(1)
	)
	for run := 0; run < km.nInit; run++ {
		labels, inertia := km.lloyd(x, rng)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return Canonicalize(best), nil
}

// lloyd runs one k-means++ initialization followed by Lloyd iterations until the
// assignment stops changing or maxIter is reached.
func (km *kmeans) lloyd(x [][]float64, rng *rand.Rand) ([]int, float64) {
	n, dim := len(x), len(x[0])
	centers := seedPlusPlus(x, km.k, rng)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	dist := make([]float64, n)

	for iter := 0; iter < km.maxIter; iter++ {
		changed := false
		for i, p := range x {
			c, d := nearest(p, centers)
			dist[i] = d
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, km.k)
		for c := range centers {
			centers[c] = make([]float64, dim)
		}
		for i, p := range x {
			c := assign[i]
			counts[c]++
			for j, v := range p {
				centers[c][j] += v
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				// reseed an empty cluster on the point worst served by its center
				far := 0
				for i := range dist {
					if dist[i] > dist[far] {
						far = i
					}
				}
				copy(centers[c], x[far])
				dist[far] = 0
				continue
			}
			for j := range centers[c] {
				centers[c][j] /= float64(counts[c])
			}
		}
	}

	var inertia float64
	for i, p := range x {
		c, d := nearest(p, centers)
		assign[i] = c
		inertia += d
	}
	return assign, inertia
}

// seedPlusPlus picks k initial centers, each new one with probability proportional to
// its squared distance from the closest center already chosen.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(x[rng.Intn(n)]))

	d2 := make([]float64, n)
	for i, p := range x {
		d2[i] = distance.SquaredEuclidean(p, centers[0])
	}
	for len(centers) < k {
		var total float64
		for _, d := range d2 {
			total += d
		}
		pick := rng.Intn(n)
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range d2 {
				r -= d
				if r < 0 {
					pick = i
					break
				}
			}
		}
		c := clone(x[pick])
		centers = append(centers, c)
		for i, p := range x {
			if d := distance.SquaredEuclidean(p, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

// nearest returns the index of the closest center and the squared distance to it. Ties
// go to the lower index.
func nearest(p []float64, centers [][]float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, center := range centers {
		if d := distance.SquaredEuclidean(p, center); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// checkK enforces 2 <= k <= rows-1.
func checkK(alg Algorithm, k, rows int) error {
	if rows < 2 {
		return errs.InsufficientData("%s needs at least 2 documents, got %d", alg, rows)
	}
	if k < 2 || k > rows-1 {
		return errs.Range(string(alg), "k", k, fmt.Sprintf("2 <= k <= %d", rows-1))
	}
	return nil
}
