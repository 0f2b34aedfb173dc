package textvec

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Row is one sparse document vector. Indices are strictly increasing column numbers.
type Row struct {
	Indices []int
	Values  []float64
}

// Dot returns the inner product of two sparse rows.
func (r Row) Dot(o Row) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(r.Indices) && j < len(o.Indices) {
		switch {
		case r.Indices[i] == o.Indices[j]:
			sum += r.Values[i] * o.Values[j]
			i++
			j++
		case r.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Matrix is a read-only sparse documents x terms matrix. It is built once per request and
// shared by every stage.
type Matrix struct {
	rows  []Row
	norms []float64
	cols  int
	vocab []string
	idf   []float64
}

// FromDense wraps dense feature rows. All rows must share one length. Used for
// precomputed embeddings and in tests.
func FromDense(rows [][]float64) *Matrix {
	m := &Matrix{rows: make([]Row, len(rows)), norms: make([]float64, len(rows))}
	if len(rows) > 0 {
		m.cols = len(rows[0])
	}
	for i, dense := range rows {
		var r Row
		for j, v := range dense {
			if v != 0 {
				r.Indices = append(r.Indices, j)
				r.Values = append(r.Values, v)
			}
		}
		m.rows[i] = r
		m.norms[i] = math.Sqrt(r.Dot(r))
	}
	return m
}

// Rows returns the number of documents.
func (m *Matrix) Rows() int { return len(m.rows) }

// Cols returns the number of surviving terms.
func (m *Matrix) Cols() int { return m.cols }

// Vocabulary returns the term for each column. Nil for matrices built with FromDense.
func (m *Matrix) Vocabulary() []string { return m.vocab }

// IDF returns the inverse document frequency of each column.
func (m *Matrix) IDF() []float64 { return m.idf }

// Row returns document i. The returned slices must not be modified.
func (m *Matrix) Row(i int) Row { return m.rows[i] }

// Norm returns the L2 norm of document i.
func (m *Matrix) Norm(i int) float64 { return m.norms[i] }

// DenseRow returns document i as a freshly allocated dense vector.
func (m *Matrix) DenseRow(i int) []float64 {
	out := make([]float64, m.cols)
	r := m.rows[i]
	for k, c := range r.Indices {
		out[c] = r.Values[k]
	}
	return out
}

// DenseRows returns every document as a dense vector.
func (m *Matrix) DenseRows() [][]float64 {
	out := make([][]float64, len(m.rows))
	for i := range m.rows {
		out[i] = m.DenseRow(i)
	}
	return out
}

// Dense returns the matrix as a gonum dense matrix.
func (m *Matrix) Dense() *mat.Dense {
	d := mat.NewDense(len(m.rows), m.cols, nil)
	for i, r := range m.rows {
		for k, c := range r.Indices {
			d.Set(i, c, r.Values[k])
		}
	}
	return d
}

// Cosine returns the cosine distance between documents i and j. A document without any
// surviving term is at distance 1 from every other document.
func (m *Matrix) Cosine(i, j int) float64 {
	if i == j {
		return 0
	}
	ni, nj := m.norms[i], m.norms[j]
	if ni == 0 || nj == 0 {
		return 1
	}
	d := 1 - m.rows[i].Dot(m.rows[j])/(ni*nj)
	if d < 0 {
		return 0
	}
	return d
}
