package cluster

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/textvec"
)

type dbscan struct {
	eps        float64
	minSamples int // 0 means DefaultMinSamples
	metric     distance.Metric
}

func newDBSCAN(p Params) (Strategy, error) {
	d := &dbscan{eps: p.Eps, metric: p.Metric}
	if d.metric == "" {
		d.metric = distance.Cosine
	}
	if !(d.eps > 0) || math.IsInf(d.eps, 0) {
		return nil, errs.Range(string(DBSCAN), "eps", p.Eps, "eps > 0")
	}
	if p.MinSamples != nil {
		if *p.MinSamples < 1 {
			return nil, errs.Range(string(DBSCAN), "min_samples", *p.MinSamples, "min_samples >= 1")
		}
		d.minSamples = *p.MinSamples
	}
	if _, err := distance.Provider(d.metric); err != nil {
		return nil, errs.Range(string(DBSCAN), "metric", string(p.Metric), "one of euclidean, cosine, manhattan")
	}
	return d, nil
}

func (d *dbscan) Algorithm() Algorithm { return DBSCAN }

// DefaultMinSamples is the neighborhood size used when none is given.
func DefaultMinSamples(rows int) int {
	return max(1, min(5, rows/10))
}

// Fit grows clusters from core points, those with at least minSamples neighbors within
// eps counting themselves. Points reachable from no core point are Noise.
func (d *dbscan) Fit(m *textvec.Matrix) (Labels, error) {
	n := m.Rows()
	if n < 2 {
		return nil, errs.InsufficientData("dbscan needs at least 2 documents, got %d", n)
	}
	minSamples := d.minSamples
	if minSamples == 0 {
		minSamples = DefaultMinSamples(n)
	}

	dist := d.distanceFunc(m)
	neighbors := make([]*roaring.Bitmap, n)
	for i := range neighbors {
		neighbors[i] = roaring.New()
		neighbors[i].Add(uint32(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dist(i, j) <= d.eps {
				neighbors[i].Add(uint32(j))
				neighbors[j].Add(uint32(i))
			}
		}
	}
	core := roaring.New()
	for i, nb := range neighbors {
		if int(nb.GetCardinality()) >= minSamples {
			core.Add(uint32(i))
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := roaring.New()
	cluster := 0
	for i := 0; i < n; i++ {
		if !visited.CheckedAdd(uint32(i)) || !core.Contains(uint32(i)) {
			continue
		}
		labels[i] = cluster

		queued := neighbors[i].Clone()
		queue := neighbors[i].ToArray()
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] == Noise {
				labels[q] = cluster
			}
			if !visited.CheckedAdd(q) || !core.Contains(q) {
				continue
			}
			it := neighbors[q].Iterator()
			for it.HasNext() {
				p := it.Next()
				if queued.CheckedAdd(p) {
					queue = append(queue, p)
				}
			}
		}
		cluster++
	}
	return Canonicalize(labels), nil
}

func (d *dbscan) distanceFunc(m *textvec.Matrix) func(i, j int) float64 {
	if d.metric == distance.Cosine {
		return m.Cosine
	}
	fn, _ := distance.Provider(d.metric)
	rows := m.DenseRows()
	return func(i, j int) float64 { return fn(rows[i], rows[j]) }
}
