package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/textvec"
)

// three well separated blobs of three points each
var blobs = [][]float64{
	{0, 0}, {0, 1}, {1, 0},
	{10, 0}, {10, 1}, {11, 0},
	{0, 30}, {1, 30}, {0, 31},
}

var blobLabels = Labels{0, 0, 0, 1, 1, 1, 2, 2, 2}

var topics = []string{
	"apple banana fruit salad",
	"banana apple fruit smoothie",
	"football goal match referee",
	"match football goal stadium",
	"python compiler code bug",
	"code python compiler test",
	"stock market price trade",
	"market stock price index",
}

func fit(t *testing.T, p Params, m *textvec.Matrix) Labels {
	t.Helper()
	s, err := New(p)
	require.NoError(t, err)
	labels, err := s.Fit(m)
	require.NoError(t, err)
	require.Len(t, labels, m.Rows())
	return labels
}

func TestCanonicalize(t *testing.T) {
	l := Canonicalize([]int{5, 5, -3, 2, 5, 2, -1})
	assert.Equal(t, Labels{0, 0, Noise, 1, 0, 1, Noise}, l)
	assert.Equal(t, 2, l.EffectiveCount())
	assert.Equal(t, 2, l.NoiseCount())
	assert.Equal(t, map[int]int{0: 3, 1: 2}, l.Sizes())
	assert.Equal(t, [][]int{{0, 1, 4}, {3, 5}}, l.Members())

	allNoise := Canonicalize([]int{-1, -1})
	assert.Zero(t, allNoise.EffectiveCount())
	assert.Empty(t, allNoise.Members())
}

func TestRegistry(t *testing.T) {
	for _, a := range Algorithms {
		got, err := ParseAlgorithm(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	got, err := ParseAlgorithm(" KMeans ")
	require.NoError(t, err)
	assert.Equal(t, KMeans, got)

	_, err = ParseAlgorithm("spectral")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	assert.ErrorIs(t, err, errs.ErrParameterRange)

	_, err = New(Params{Algorithm: "meanshift"})
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	infos := Describe()
	require.Len(t, infos, len(Algorithms))
	for i, info := range infos {
		assert.Equal(t, Algorithms[i], info.Name)
		assert.NotEmpty(t, info.Params)
		assert.Equal(t, info.Name == DBSCAN, info.EmitsNoise)
	}

	assert.Equal(t, 7, MaxClusters(8))
	assert.Equal(t, 20, MaxClusters(100))
}

func TestStrategies_ReportAlgorithm(t *testing.T) {
	p := DefaultParams()
	for _, a := range Algorithms {
		p.Algorithm = a
		s, err := New(p)
		require.NoError(t, err)
		assert.Equal(t, a, s.Algorithm())
	}
}

func TestKMeans(t *testing.T) {
	m := textvec.FromDense(blobs)
	p := DefaultParams()
	p.K = 3

	labels := fit(t, p, m)
	assert.Equal(t, blobLabels, labels)
	assert.Equal(t, 3, labels.EffectiveCount())
	assert.Zero(t, labels.NoiseCount())

	// fixed seed is reproducible
	assert.Equal(t, labels, fit(t, p, m))
}

func TestKMeans_TopicCorpus(t *testing.T) {
	m, err := textvec.Vectorize(topics, textvec.DefaultOptions())
	require.NoError(t, err)

	p := DefaultParams()
	p.K = 4
	labels := fit(t, p, m)
	assert.Equal(t, Labels{0, 0, 1, 1, 2, 2, 3, 3}, labels)
}

func TestKMeans_KBounds(t *testing.T) {
	m := textvec.FromDense(blobs)
	p := DefaultParams()

	p.K = 1
	_, err := New(p)
	assert.ErrorIs(t, err, errs.ErrParameterRange)

	p.K = len(blobs)
	s, err := New(p)
	require.NoError(t, err)
	_, err = s.Fit(m)
	var pre *errs.ParameterRangeError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "k", pre.Param)
	assert.Equal(t, "2 <= k <= 8", pre.Constraint)

	// the largest legal k may still collapse duplicates, count comes from labels
	p.K = len(blobs) - 1
	labels := fit(t, p, m)
	assert.LessOrEqual(t, labels.EffectiveCount(), p.K)
	assert.GreaterOrEqual(t, labels.EffectiveCount(), 2)

	for _, bad := range []func(*Params){
		func(p *Params) { p.MaxIter = -1 },
		func(p *Params) { p.MaxIter = 0 },
		func(p *Params) { p.NInit = 0 },
	} {
		p := DefaultParams()
		bad(&p)
		_, err = New(p)
		assert.ErrorIs(t, err, errs.ErrParameterRange)
	}
}

func TestAgglomerative(t *testing.T) {
	m := textvec.FromDense(blobs)

	for _, method := range linkage.Methods {
		for _, metric := range []distance.Metric{distance.Euclidean, distance.Manhattan} {
			if method == linkage.Ward && metric != distance.Euclidean {
				continue
			}
			t.Run(string(method)+"/"+string(metric), func(t *testing.T) {
				p := Params{Algorithm: Agglomerative, K: 3, Linkage: method, Metric: metric}
				labels := fit(t, p, m)
				assert.Equal(t, blobLabels, labels)
				// the flat cut is reproducible
				assert.Equal(t, labels, fit(t, p, m))
			})
		}
	}
}

func TestAgglomerative_FitTree(t *testing.T) {
	s, err := New(Params{Algorithm: Agglomerative, K: 2})
	require.NoError(t, err)
	hs, ok := s.(HierarchicalStrategy)
	require.True(t, ok)

	labels, tree, err := hs.FitTree(textvec.FromDense(blobs))
	require.NoError(t, err)
	assert.Equal(t, Labels{0, 0, 0, 0, 0, 0, 1, 1, 1}, labels)
	assert.Len(t, tree.Steps, len(blobs)-1)
	assert.Equal(t, linkage.Ward, tree.Method)
}

func TestAgglomerative_Validation(t *testing.T) {
	_, err := New(Params{Algorithm: Agglomerative, K: 3, Linkage: linkage.Ward, Metric: distance.Cosine})
	var pre *errs.ParameterRangeError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, string(Agglomerative), pre.Algorithm)
	assert.Equal(t, "metric", pre.Param)

	_, err = New(Params{Algorithm: Agglomerative, K: 0})
	assert.ErrorIs(t, err, errs.ErrParameterRange)

	s, err := New(Params{Algorithm: Agglomerative, K: 9})
	require.NoError(t, err)
	_, err = s.Fit(textvec.FromDense(blobs))
	assert.ErrorIs(t, err, errs.ErrParameterRange)
}

func TestDBSCAN(t *testing.T) {
	withOutlier := append(append([][]float64{}, blobs...), []float64{50, 50})
	m := textvec.FromDense(withOutlier)

	labels := fit(t, Params{Algorithm: DBSCAN, Eps: 1.5, MinSamples: IntParam(2), Metric: distance.Euclidean}, m)
	assert.Equal(t, Labels{0, 0, 0, 1, 1, 1, 2, 2, 2, Noise}, labels)
	assert.Equal(t, 3, labels.EffectiveCount())
	assert.Equal(t, 1, labels.NoiseCount())

	// min_samples 1 makes every point core
	labels = fit(t, Params{Algorithm: DBSCAN, Eps: 1.5, MinSamples: IntParam(1), Metric: distance.Euclidean}, m)
	assert.Zero(t, labels.NoiseCount())
	assert.Equal(t, 4, labels.EffectiveCount())
}

func TestDBSCAN_NoiseMonotoneInEps(t *testing.T) {
	withOutlier := append(append([][]float64{}, blobs...), []float64{50, 50})
	m := textvec.FromDense(withOutlier)

	prev := len(withOutlier) + 1
	for _, eps := range []float64{0.5, 1.0, 1.2, 1.5, 11, 40, 100} {
		labels := fit(t, Params{Algorithm: DBSCAN, Eps: eps, MinSamples: IntParam(3), Metric: distance.Euclidean}, m)
		for _, l := range labels {
			assert.True(t, l == Noise || l >= 0)
		}
		noise := labels.NoiseCount()
		assert.LessOrEqual(t, noise, prev, "eps=%v", eps)
		prev = noise
	}
}

func TestDBSCAN_CosineDefaults(t *testing.T) {
	m := textvec.FromDense([][]float64{{1, 0}, {0.99, 0.01}, {0, 1}, {0.01, 0.99}})

	labels := fit(t, Params{Algorithm: DBSCAN, Eps: 0.01, MinSamples: IntParam(2)}, m)
	assert.Equal(t, Labels{0, 0, 1, 1}, labels)

	labels = fit(t, Params{Algorithm: DBSCAN, Eps: 1e-9, MinSamples: IntParam(2)}, m)
	assert.Equal(t, Labels{Noise, Noise, Noise, Noise}, labels)
	assert.Zero(t, labels.EffectiveCount())

	assert.Equal(t, 1, DefaultMinSamples(8))
	assert.Equal(t, 3, DefaultMinSamples(35))
	assert.Equal(t, 5, DefaultMinSamples(500))
}

func TestDBSCAN_Validation(t *testing.T) {
	_, err := New(Params{Algorithm: DBSCAN, Eps: 0, MinSamples: IntParam(2)})
	assert.ErrorIs(t, err, errs.ErrParameterRange)
	_, err = New(Params{Algorithm: DBSCAN, Eps: -1, MinSamples: IntParam(2)})
	assert.ErrorIs(t, err, errs.ErrParameterRange)
	_, err = New(Params{Algorithm: DBSCAN, Eps: 0.5, MinSamples: IntParam(-2)})
	assert.ErrorIs(t, err, errs.ErrParameterRange)

	// an explicit zero is rejected, only a missing value means auto
	_, err = New(Params{Algorithm: DBSCAN, Eps: 0.5, MinSamples: IntParam(0)})
	var pre *errs.ParameterRangeError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "min_samples", pre.Param)
	assert.Equal(t, 0, pre.Value)
	_, err = New(Params{Algorithm: DBSCAN, Eps: 0.5})
	assert.NoError(t, err)
	_, err = New(Params{Algorithm: DBSCAN, Eps: 0.5, Metric: "jaccard"})
	assert.ErrorIs(t, err, errs.ErrParameterRange)
}

func TestBIRCH(t *testing.T) {
	m := textvec.FromDense(blobs)

	labels := fit(t, Params{Algorithm: BIRCH, Threshold: 2, BranchingFactor: 50}, m)
	assert.Equal(t, blobLabels, labels)

	labels = fit(t, Params{Algorithm: BIRCH, Threshold: 2, BranchingFactor: 50, K: 2}, m)
	assert.Equal(t, Labels{0, 0, 0, 0, 0, 0, 1, 1, 1}, labels)

	s, err := New(Params{Algorithm: BIRCH, Threshold: 2, BranchingFactor: 50, K: 4})
	require.NoError(t, err)
	_, err = s.Fit(m)
	assert.ErrorIs(t, err, errs.ErrParameterRange)
}

func TestBIRCH_SplitsKeepEveryPoint(t *testing.T) {
	m := textvec.FromDense(blobs)

	labels := fit(t, Params{Algorithm: BIRCH, Threshold: 0.1, BranchingFactor: 2}, m)
	assert.Equal(t, len(blobs), labels.EffectiveCount())

	labels = fit(t, Params{Algorithm: BIRCH, Threshold: 0.1, BranchingFactor: 2, K: 3}, m)
	assert.Equal(t, blobLabels, labels)

	tree := newCFTree(0.1, 2)
	for _, p := range blobs {
		tree.insert(p)
	}
	leaves := tree.leafSubclusters()
	assert.Len(t, leaves, len(blobs))
	total := 0
	for _, e := range tree.root.entries {
		total += e.n
	}
	assert.Equal(t, len(blobs), total)
	assert.False(t, tree.root.leaf)
	for _, e := range tree.root.entries {
		assert.LessOrEqual(t, len(e.child.entries), 2)
	}
}

func TestBIRCH_Validation(t *testing.T) {
	tests := []struct {
		param string
		p     Params
	}{
		{"threshold", Params{Algorithm: BIRCH, Threshold: 0, BranchingFactor: 50}},
		{"branching_factor", Params{Algorithm: BIRCH, Threshold: 0.5, BranchingFactor: 1}},
		{"branching_factor", Params{Algorithm: BIRCH, Threshold: 0.5}},
		{"k", Params{Algorithm: BIRCH, Threshold: 0.5, BranchingFactor: 50, K: 1}},
		{"k", Params{Algorithm: BIRCH, Threshold: 0.5, BranchingFactor: 50, K: -3}},
	}
	for _, tt := range tests {
		_, err := New(tt.p)
		var pre *errs.ParameterRangeError
		require.ErrorAs(t, err, &pre, "%+v", tt.p)
		assert.Equal(t, tt.param, pre.Param)
	}
}

func TestFit_InsufficientData(t *testing.T) {
	one := textvec.FromDense([][]float64{{1, 2}})
	for _, p := range []Params{
		{Algorithm: KMeans, K: 2, MaxIter: DefaultMaxIter, NInit: DefaultNInit},
		{Algorithm: Agglomerative, K: 2},
		{Algorithm: DBSCAN, Eps: 0.5, MinSamples: IntParam(1)},
		{Algorithm: BIRCH, Threshold: 0.5, BranchingFactor: DefaultBranchingFactor},
	} {
		s, err := New(p)
		require.NoError(t, err)
		_, err = s.Fit(one)
		assert.ErrorIs(t, err, errs.ErrInsufficientData, string(p.Algorithm))
	}
}
