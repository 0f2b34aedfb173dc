package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{in: "euclidean", want: Euclidean},
		{in: " L2 ", want: Euclidean},
		{in: "cosine", want: Cosine},
		{in: "cityblock", want: Manhattan},
		{in: "hamming", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMetric(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDistances(t *testing.T) {
	a := []float64{0, 0}
	b := []float64{3, 4}

	assert.InDelta(t, 5.0, EuclideanDistance(a, b), 1e-12)
	assert.InDelta(t, 25.0, SquaredEuclidean(a, b), 1e-12)
	assert.InDelta(t, 7.0, ManhattanDistance(a, b), 1e-12)

	assert.InDelta(t, 0.0, CosineDistance([]float64{1, 1}, []float64{2, 2}), 1e-12)
	assert.InDelta(t, 1.0, CosineDistance([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, 2.0, CosineDistance([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Equal(t, 1.0, CosineDistance([]float64{0, 0}, []float64{1, 0}))
}

func TestProvider(t *testing.T) {
	fn, err := Provider(Manhattan)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, fn([]float64{1, 1}, []float64{0, 0}), 1e-12)

	_, err = Provider(Metric("bogus"))
	assert.Error(t, err)
}

func TestPairwise(t *testing.T) {
	rows := [][]float64{{0, 0}, {3, 4}, {0, 1}}
	d := Pairwise(rows, EuclideanDistance)

	require.Len(t, d, 3)
	for i := range d {
		assert.Equal(t, 0.0, d[i][i])
		for j := range d {
			assert.Equal(t, d[i][j], d[j][i])
		}
	}
	assert.InDelta(t, 5.0, d[0][1], 1e-12)
	assert.InDelta(t, 1.0, d[0][2], 1e-12)
}
