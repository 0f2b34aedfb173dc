package textvec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/segment"
)

func TestVectorize(t *testing.T) {
	corpus := []string{"apple banana", "apple cherry", "banana cherry", "durian"}

	m, err := Vectorize(corpus, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 4, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, []string{"apple", "banana", "cherry"}, m.Vocabulary())
	for _, w := range m.IDF() {
		assert.InDelta(t, math.Ln2, w, 1e-12)
	}

	inv := 1 / math.Sqrt2
	assert.InDeltaSlice(t, []float64{inv, inv, 0}, m.DenseRow(0), 1e-12)
	assert.InDeltaSlice(t, []float64{0, inv, inv}, m.DenseRow(2), 1e-12)

	// durian is below min_df, leaving an all-zero row
	assert.Equal(t, []float64{0, 0, 0}, m.DenseRow(3))
	assert.Equal(t, 0.0, m.Norm(3))
	assert.Equal(t, 1.0, m.Cosine(3, 0))
	assert.Equal(t, 0.0, m.Cosine(3, 3))

	assert.InDelta(t, 0.5, m.Cosine(0, 1), 1e-12)

	d := m.Dense()
	r, c := d.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, inv, d.At(1, 0), 1e-12)
}

func TestVectorize_RowsAreUnitLength(t *testing.T) {
	corpus := []string{
		"go go go channels",
		"channels goroutines go",
		"goroutines scheduler",
		"scheduler channels",
	}
	m, err := Vectorize(corpus, Options{MaxDF: 1, MinDF: 1, Segmenter: segment.Whitespace})
	require.NoError(t, err)

	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		var sum float64
		for _, v := range row.Values {
			sum += v * v
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9, "row %d", i)
		for k := 1; k < len(row.Indices); k++ {
			assert.Less(t, row.Indices[k-1], row.Indices[k])
		}
	}
}

func TestVectorize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		corpus []string
		opts   Options
		want   error
	}{
		{name: "empty corpus", corpus: nil, opts: DefaultOptions(), want: errs.ErrInsufficientData},
		{name: "single document", corpus: []string{"only one"}, opts: DefaultOptions(), want: errs.ErrInsufficientData},
		{name: "single document beats bad options", corpus: []string{"x"}, opts: Options{}, want: errs.ErrInsufficientData},
		{name: "max_df zero", corpus: []string{"a", "b"}, opts: Options{MaxDF: 0, MinDF: 1}, want: errs.ErrParameterRange},
		{name: "max_df above one", corpus: []string{"a", "b"}, opts: Options{MaxDF: 1.5, MinDF: 1}, want: errs.ErrParameterRange},
		{name: "min_df zero", corpus: []string{"a", "b"}, opts: Options{MaxDF: 0.9, MinDF: 0}, want: errs.ErrParameterRange},
		{
			name:   "no shared terms",
			corpus: []string{"alpha beta", "gamma delta", "epsilon zeta"},
			opts:   DefaultOptions(),
			want:   errs.ErrInsufficientFeatures,
		},
		{
			name:   "every term too common",
			corpus: []string{"same words", "same words"},
			opts:   DefaultOptions(),
			want:   errs.ErrInsufficientFeatures,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Vectorize(tt.corpus, tt.opts)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFromDense(t *testing.T) {
	m := FromDense([][]float64{{3, 0}, {0, 4}, {0, 0}})

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 2, m.Cols())
	assert.Nil(t, m.Vocabulary())
	assert.Equal(t, 3.0, m.Norm(0))
	assert.Equal(t, []int{1}, m.Row(1).Indices)
	assert.InDelta(t, 1.0, m.Cosine(0, 1), 1e-12)
	assert.Equal(t, [][]float64{{3, 0}, {0, 4}, {0, 0}}, m.DenseRows())
}

func TestRowDot(t *testing.T) {
	a := Row{Indices: []int{0, 2, 5}, Values: []float64{1, 2, 3}}
	b := Row{Indices: []int{2, 3, 5}, Values: []float64{4, 5, 6}}
	assert.Equal(t, 26.0, a.Dot(b))
	assert.Equal(t, 0.0, a.Dot(Row{}))
}
