package projection

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultPerplexity = 30
	DefaultIterations = 300

	minPerplexity       = 5
	earlyExaggeration   = 12.0
	explorationIters    = 250
	minGain             = 0.01
	perplexityTolerance = 1e-5
	perplexitySteps     = 100
	machineEpsilon      = 2.220446049250313e-16
)

// EffectivePerplexity clamps the requested perplexity to [5, max(5, rows-2)].
func EffectivePerplexity(requested float64, rows int) float64 {
	if requested == 0 {
		requested = DefaultPerplexity
	}
	upper := math.Max(minPerplexity, float64(rows-2))
	return math.Min(math.Max(requested, minPerplexity), upper)
}

// tsne runs exact t-SNE with a PCA initialization, so the same input always yields the
// same layout.
func tsne(x mat.Matrix, opts Options) *Result {
	n, _ := x.Dims()
	perplexity := EffectivePerplexity(opts.Perplexity, n)
	iters := opts.Iterations
	if iters == 0 {
		iters = DefaultIterations
	}

	p := jointProbabilities(x, perplexity)

	res := &Result{Method: TSNE, Perplexity: perplexity}
	init, _ := pca(x)
	y := make([][]float64, n)
	col := mat.Col(nil, 0, init)
	_, std := stat.PopMeanStdDev(col, nil)
	if std == 0 {
		res.Warnings = append(res.Warnings, "all rows coincide; layout collapsed to the origin")
		std = 1
	}
	for i := range y {
		y[i] = []float64{init.At(i, 0) / std * 1e-4, init.At(i, 1) / std * 1e-4}
	}

	lr := math.Max(float64(n)/earlyExaggeration/4, 50)
	update := make([][]float64, n)
	gains := make([][]float64, n)
	for i := range update {
		update[i] = make([]float64, 2)
		gains[i] = []float64{1, 1}
	}

	kl := 0.0
	for it := 0; it < iters; it++ {
		exaggeration, momentum := 1.0, 0.8
		if it < explorationIters {
			exaggeration, momentum = earlyExaggeration, 0.5
		}
		var grad [][]float64
		grad, kl = gradient(p, y, exaggeration)
		for i := range y {
			for d := 0; d < 2; d++ {
				g := grad[i][d]
				if update[i][d]*g < 0 {
					gains[i][d] += 0.2
				} else {
					gains[i][d] *= 0.8
				}
				gains[i][d] = math.Max(gains[i][d], minGain)
				update[i][d] = momentum*update[i][d] - lr*gains[i][d]*g
				y[i][d] += update[i][d]
			}
		}
	}

	res.KLDivergence = kl
	res.Points = make([]Point, n)
	for i, v := range y {
		res.Points[i] = Point{X: v[0], Y: v[1]}
	}
	return res
}

// jointProbabilities calibrates a Gaussian per row to the target perplexity and returns
// the symmetrized joint distribution P.
func jointProbabilities(x mat.Matrix, perplexity float64) [][]float64 {
	n, d := x.Dims()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, d)
		mat.Row(rows[i], i, x)
	}
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i != j {
				dd := floats.Distance(rows[i], rows[j], 2)
				dist[i][j] = dd * dd
			}
		}
	}

	target := math.Log(perplexity)
	cond := make([][]float64, n)
	for i := range cond {
		cond[i] = conditionalRow(dist[i], i, target)
	}

	p := make([][]float64, n)
	var sum float64
	for i := range p {
		p[i] = make([]float64, n)
		for j := range p[i] {
			p[i][j] = cond[i][j] + cond[j][i]
			sum += p[i][j]
		}
	}
	for i := range p {
		for j := range p[i] {
			if i == j {
				p[i][j] = 0
				continue
			}
			p[i][j] = math.Max(p[i][j]/sum, machineEpsilon)
		}
	}
	return p
}

// conditionalRow binary searches the Gaussian precision whose conditional distribution
// over the other points has entropy target (in nats).
func conditionalRow(dist []float64, self int, target float64) []float64 {
	n := len(dist)
	row := make([]float64, n)
	beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)

	for step := 0; step < perplexitySteps; step++ {
		var sum float64
		for j := 0; j < n; j++ {
			if j == self {
				row[j] = 0
				continue
			}
			row[j] = math.Exp(-dist[j] * beta)
			sum += row[j]
		}
		if sum == 0 {
			sum = machineEpsilon
		}
		var weighted float64
		for j := range row {
			row[j] /= sum
			weighted += dist[j] * row[j]
		}
		entropy := math.Log(sum) + beta*weighted

		diff := entropy - target
		if math.Abs(diff) <= perplexityTolerance {
			break
		}
		if diff > 0 {
			lo = beta
			if math.IsInf(hi, 1) {
				beta *= 2
			} else {
				beta = (beta + hi) / 2
			}
		} else {
			hi = beta
			if math.IsInf(lo, -1) {
				beta /= 2
			} else {
				beta = (beta + lo) / 2
			}
		}
	}
	return row
}

// gradient returns the KL gradient with respect to every embedding coordinate under a
// Student-t kernel, and the divergence itself.
func gradient(p, y [][]float64, exaggeration float64) ([][]float64, float64) {
	n := len(y)
	num := make([][]float64, n)
	var sum float64
	for i := range num {
		num[i] = make([]float64, n)
		for j := range num[i] {
			if i == j {
				continue
			}
			dx, dy := y[i][0]-y[j][0], y[i][1]-y[j][1]
			num[i][j] = 1 / (1 + dx*dx + dy*dy)
			sum += num[i][j]
		}
	}

	grad := make([][]float64, n)
	var kl float64
	for i := range grad {
		grad[i] = make([]float64, 2)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			q := math.Max(num[i][j]/sum, machineEpsilon)
			pij := exaggeration * p[i][j]
			kl += pij * math.Log(math.Max(pij, machineEpsilon)/q)
			mult := 4 * (pij - q) * num[i][j]
			grad[i][0] += mult * (y[i][0] - y[j][0])
			grad[i][1] += mult * (y[i][1] - y[j][1])
		}
	}
	return grad, kl
}
