package linkage

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
)

// five points on a line: two tight pairs and a far outlier
var line = [][]float64{{0}, {1}, {5}, {6}, {20}}

func TestBuild_KnownMerges(t *testing.T) {
	tests := []struct {
		method Method
		want   []Step
	}{
		{
			method: Single,
			want:   []Step{{0, 1, 1, 2}, {2, 3, 1, 2}, {5, 6, 4, 4}, {4, 7, 14, 5}},
		},
		{
			method: Complete,
			want:   []Step{{0, 1, 1, 2}, {2, 3, 1, 2}, {5, 6, 6, 4}, {4, 7, 20, 5}},
		},
		{
			method: Average,
			want:   []Step{{0, 1, 1, 2}, {2, 3, 1, 2}, {5, 6, 5, 4}, {4, 7, 17, 5}},
		},
		{
			method: Ward,
			want:   []Step{{0, 1, 1, 2}, {2, 3, 1, 2}, {5, 6, math.Sqrt(50), 4}, {4, 7, math.Sqrt(462.4), 5}},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			tree, err := Build(line, tt.method, distance.Euclidean)
			require.NoError(t, err)
			require.Len(t, tree.Steps, len(tt.want))
			assert.Equal(t, 5, tree.N)
			for i, want := range tt.want {
				got := tree.Steps[i]
				assert.Equal(t, want.A, got.A, "step %d", i)
				assert.Equal(t, want.B, got.B, "step %d", i)
				assert.Equal(t, want.Size, got.Size, "step %d", i)
				assert.InDelta(t, want.Distance, got.Distance, 1e-9, "step %d", i)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build([][]float64{{1, 2}}, Single, distance.Euclidean)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	_, err = Build(nil, Ward, distance.Euclidean)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	_, err = Build(line, Ward, distance.Cosine)
	var pre *errs.ParameterRangeError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "metric", pre.Param)

	_, err = Build(line, Method("centroid"), distance.Euclidean)
	assert.ErrorIs(t, err, errs.ErrParameterRange)

	_, err = Build(line, Average, distance.Metric("hamming"))
	assert.ErrorIs(t, err, errs.ErrParameterRange)
}

func TestBuild_StructuralProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rows := make([][]float64, 25)
	for i := range rows {
		rows[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
	}

	for _, method := range Methods {
		for _, metric := range []distance.Metric{distance.Euclidean, distance.Cosine, distance.Manhattan} {
			if method == Ward && metric != distance.Euclidean {
				continue
			}
			t.Run(string(method)+"/"+string(metric), func(t *testing.T) {
				tree, err := Build(rows, method, metric)
				require.NoError(t, err)
				require.Len(t, tree.Steps, len(rows)-1)

				used := make(map[int]bool)
				sizes := make(map[int]int)
				for i := range rows {
					sizes[i] = 1
				}
				prev := 0.0
				for i, s := range tree.Steps {
					assert.Less(t, s.A, s.B)
					assert.Less(t, s.B, len(rows)+i, "merge %d refers to a future cluster", i)
					assert.False(t, used[s.A])
					assert.False(t, used[s.B])
					used[s.A], used[s.B] = true, true
					assert.Equal(t, sizes[s.A]+sizes[s.B], s.Size)
					sizes[len(rows)+i] = s.Size
					assert.GreaterOrEqual(t, s.Distance, prev)
					prev = s.Distance
				}
				assert.Equal(t, len(rows), tree.Steps[len(tree.Steps)-1].Size)
			})
		}
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Ward ")
	require.NoError(t, err)
	assert.Equal(t, Ward, m)

	_, err = ParseMethod("median")
	assert.Error(t, err)
}

func TestTree_Cut(t *testing.T) {
	tree, err := Build(line, Single, distance.Euclidean)
	require.NoError(t, err)

	tests := []struct {
		k    int
		want []int
	}{
		{k: 1, want: []int{0, 0, 0, 0, 0}},
		{k: 2, want: []int{0, 0, 0, 0, 1}},
		{k: 3, want: []int{0, 0, 1, 1, 2}},
		{k: 5, want: []int{0, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		got, err := tree.Cut(tt.k)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "k=%d", tt.k)
	}

	_, err = tree.Cut(0)
	assert.ErrorIs(t, err, errs.ErrParameterRange)
	_, err = tree.Cut(6)
	assert.ErrorIs(t, err, errs.ErrParameterRange)
}

func TestTree_FlatAtAndMaxDistance(t *testing.T) {
	tree, err := Build(line, Single, distance.Euclidean)
	require.NoError(t, err)

	assert.Equal(t, 14.0, tree.MaxDistance())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, tree.FlatAt(0.5))
	assert.Equal(t, []int{0, 0, 1, 1, 2}, tree.FlatAt(1))
	assert.Equal(t, []int{0, 0, 0, 0, 1}, tree.FlatAt(10))
	assert.Equal(t, []int{0, 0, 0, 0, 0}, tree.FlatAt(100))

	assert.Equal(t, 0.0, (&Tree{N: 1}).MaxDistance())
}
