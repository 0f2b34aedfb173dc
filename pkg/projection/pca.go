package projection

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// pca projects x onto its two leading principal components and reports the share of
// variance each explains. Component signs are fixed so the largest loading is positive.
func pca(x mat.Matrix) (*mat.Dense, []float64) {
	n, d := x.Dims()

	centered := mat.DenseCopyOf(x)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, centered)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, col[i]-mean)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return mat.NewDense(n, 2, nil), []float64{0, 0}
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	var total float64
	for _, s := range values {
		total += s * s
	}
	ratio := make([]float64, 2)
	components := mat.NewDense(d, 2, nil)
	for c := 0; c < 2 && c < len(values); c++ {
		if total > 0 {
			ratio[c] = values[c] * values[c] / total
		}
		big, sign := 0.0, 1.0
		for j := 0; j < d; j++ {
			if a := math.Abs(v.At(j, c)); a > big {
				big = a
				sign = math.Copysign(1, v.At(j, c))
			}
		}
		for j := 0; j < d; j++ {
			components.Set(j, c, sign*v.At(j, c))
		}
	}

	var y mat.Dense
	y.Mul(centered, components)
	return &y, ratio
}
