// Package projection reduces document vectors to two dimensions for plotting.
package projection

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textcluster/pkg/errs"
)

// Method is a dimensionality reduction technique.
type Method string

const (
	PCA  Method = "pca"
	TSNE Method = "tsne"
)

// ParseMethod parses a method name; "t-sne" is accepted for TSNE.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pca":
		return PCA, nil
	case "tsne", "t-sne":
		return TSNE, nil
	default:
		return "", fmt.Errorf("unknown projection method %q", s)
	}
}

// Options selects the method and its tuning.
type Options struct {
	Method Method `yaml:"method" json:"method"`
	// Perplexity is the requested t-SNE perplexity, 0 for 30. The value used is clamped
	// to [5, max(5, rows-2)].
	Perplexity float64 `yaml:"perplexity" json:"perplexity"`
	// Iterations is the number of t-SNE gradient steps, 0 for 300.
	Iterations int `yaml:"iterations" json:"iterations"`
}

// DefaultOptions returns PCA.
func DefaultOptions() Options {
	return Options{Method: PCA, Perplexity: DefaultPerplexity, Iterations: DefaultIterations}
}

// Point is one document's 2-D coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Result is a 2-D projection aligned with the input rows.
type Result struct {
	Method Method  `json:"method"`
	Points []Point `json:"points"`
	// ExplainedVarianceRatio is set by PCA: the share of total variance on each axis.
	ExplainedVarianceRatio []float64 `json:"explained_variance_ratio,omitempty"`
	// Perplexity and KLDivergence are set by t-SNE.
	Perplexity   float64  `json:"perplexity,omitempty"`
	KLDivergence float64  `json:"kl_divergence,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Project maps every row of x to a 2-D point. At least two rows are required. With fewer
// than two columns no reduction runs: the raw features are padded with zeros and a
// warning is attached.
func Project(x mat.Matrix, opts Options) (*Result, error) {
	rows, cols := x.Dims()
	if rows < 2 {
		return nil, errs.InsufficientData("projection needs at least 2 rows, got %d", rows)
	}
	method := opts.Method
	if method == "" {
		method = PCA
	}
	if method != PCA && method != TSNE {
		return nil, errs.Range("projection", "method", string(method), "pca or tsne")
	}
	if opts.Perplexity < 0 {
		return nil, errs.Range("projection", "perplexity", opts.Perplexity, "perplexity >= 0")
	}
	if opts.Iterations < 0 {
		return nil, errs.Range("projection", "iterations", opts.Iterations, "iterations >= 0")
	}

	if cols < 2 {
		res := &Result{Method: method, Points: make([]Point, rows)}
		for i := range res.Points {
			if cols == 1 {
				res.Points[i].X = x.At(i, 0)
			}
		}
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("feature space has %d column(s); showing raw features padded to 2 dimensions", cols))
		return res, nil
	}

	if method == TSNE {
		return tsne(x, opts), nil
	}
	points, ratio := pca(x)
	return &Result{Method: PCA, Points: toPoints(points), ExplainedVarianceRatio: ratio}, nil
}

func toPoints(y *mat.Dense) []Point {
	n, _ := y.Dims()
	out := make([]Point, n)
	for i := range out {
		out[i] = Point{X: y.At(i, 0), Y: y.At(i, 1)}
	}
	return out
}
