// Package distance provides the dense-vector distance metrics used by the clustering
// algorithms and the hierarchy builder.
package distance

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Metric names a distance function.
type Metric string

const (
	Euclidean Metric = "euclidean"
	Cosine    Metric = "cosine"
	Manhattan Metric = "manhattan"
)

// Func computes the distance between two equal-length vectors.
type Func func(a, b []float64) float64

// ParseMetric parses a metric name. "l2" and "cityblock" are accepted aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean", "l2":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	case "manhattan", "cityblock", "l1":
		return Manhattan, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// Provider returns the distance function for m.
func Provider(m Metric) (Func, error) {
	switch m {
	case Euclidean:
		return EuclideanDistance, nil
	case Cosine:
		return CosineDistance, nil
	case Manhattan:
		return ManhattanDistance, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", m)
	}
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean returns the squared L2 distance between a and b.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// ManhattanDistance returns the L1 distance between a and b.
func ManhattanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything,
// including another zero vector.
func CosineDistance(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - floats.Dot(a, b)/(na*nb)
	// rounding can push identical vectors slightly below zero
	return math.Max(d, 0)
}

// Pairwise returns the full symmetric n x n distance matrix of rows under fn.
func Pairwise(rows [][]float64, fn Func) [][]float64 {
	n := len(rows)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := fn(rows[i], rows[j])
			d[i][j] = v
			d[j][i] = v
		}
	}
	return d
}
