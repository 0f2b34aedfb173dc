// Package quality scores a partition of vectorized documents.
//
// Cohesion is the mean silhouette coefficient under cosine distance on the sparse rows;
// separation is the Davies-Bouldin index under Euclidean distance on dense rows. The two
// live in different geometries and are not comparable with each other. Noise labels are
// excluded from both, and the 2 <= k < n bound is checked against the clustered
// documents only, so [0, 1, -1] is degenerate even though n is 3.
package quality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/textvec"
)

// Scores holds both quality indices. Higher cohesion is better; lower separation is
// better.
type Scores struct {
	Cohesion   float64 `json:"cohesion"`
	Separation float64 `json:"separation"`
	Clusters   int     `json:"clusters"`
	Evaluated  int     `json:"evaluated"`
}

// partition groups the non-noise documents by label.
type partition struct {
	members [][]int
	points  int
}

func split(m *textvec.Matrix, labels []int) (*partition, error) {
	if len(labels) != m.Rows() {
		return nil, fmt.Errorf("labels length %d does not match %d documents", len(labels), m.Rows())
	}
	p := &partition{}
	index := make(map[int]int)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		c, ok := index[l]
		if !ok {
			c = len(p.members)
			index[l] = c
			p.members = append(p.members, nil)
		}
		p.members[c] = append(p.members[c], i)
		p.points++
	}

	k := len(p.members)
	if k < 2 || k > p.points-1 {
		return nil, errs.Degenerate("%d cluster(s) over %d clustered documents, need 2 <= k < documents",
			k, p.points)
	}
	return p, nil
}

// Evaluate computes both scores. A partition with fewer than two clusters, or with one
// cluster per clustered document, yields errs.ErrDegenerateClustering.
func Evaluate(m *textvec.Matrix, labels []int) (Scores, error) {
	p, err := split(m, labels)
	if err != nil {
		return Scores{}, err
	}
	return Scores{
		Cohesion:   silhouette(m, p),
		Separation: daviesBouldin(m, p),
		Clusters:   len(p.members),
		Evaluated:  p.points,
	}, nil
}

// Silhouette returns the mean silhouette coefficient in [-1, 1].
func Silhouette(m *textvec.Matrix, labels []int) (float64, error) {
	p, err := split(m, labels)
	if err != nil {
		return 0, err
	}
	return silhouette(m, p), nil
}

// DaviesBouldin returns the Davies-Bouldin index, >= 0.
func DaviesBouldin(m *textvec.Matrix, labels []int) (float64, error) {
	p, err := split(m, labels)
	if err != nil {
		return 0, err
	}
	return daviesBouldin(m, p), nil
}

func silhouette(m *textvec.Matrix, p *partition) float64 {
	scores := make([]float64, 0, p.points)
	for own, members := range p.members {
		for _, i := range members {
			if len(members) == 1 {
				scores = append(scores, 0)
				continue
			}
			var a float64
			for _, j := range members {
				if j != i {
					a += m.Cosine(i, j)
				}
			}
			a /= float64(len(members) - 1)

			b := math.Inf(1)
			for other, others := range p.members {
				if other == own {
					continue
				}
				var sum float64
				for _, j := range others {
					sum += m.Cosine(i, j)
				}
				b = math.Min(b, sum/float64(len(others)))
			}

			s := 0.0
			if d := math.Max(a, b); d > 0 {
				s = (b - a) / d
			}
			scores = append(scores, s)
		}
	}
	return stat.Mean(scores, nil)
}

func daviesBouldin(m *textvec.Matrix, p *partition) float64 {
	k := len(p.members)
	centroids := make([][]float64, k)
	scatter := make([]float64, k)
	for c, members := range p.members {
		rows := make([][]float64, len(members))
		centroid := make([]float64, m.Cols())
		for r, i := range members {
			rows[r] = m.DenseRow(i)
			floats.Add(centroid, rows[r])
		}
		floats.Scale(1/float64(len(members)), centroid)
		centroids[c] = centroid

		dists := make([]float64, len(rows))
		for r, row := range rows {
			dists[r] = floats.Distance(row, centroid, 2)
		}
		scatter[c] = stat.Mean(dists, nil)
	}

	worst := make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			sep := floats.Distance(centroids[i], centroids[j], 2)
			if sep == 0 {
				// coincident centroids contribute nothing
				continue
			}
			worst[i] = math.Max(worst[i], (scatter[i]+scatter[j])/sep)
		}
	}
	return stat.Mean(worst, nil)
}
