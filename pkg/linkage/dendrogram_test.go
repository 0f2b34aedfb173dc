package linkage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/textcluster/pkg/distance"
)

func singleLine(t *testing.T) *Tree {
	t.Helper()
	tree, err := Build(line, Single, distance.Euclidean)
	require.NoError(t, err)
	return tree
}

func TestDendrogram_DefaultThreshold(t *testing.T) {
	dg := singleLine(t).Dendrogram(DefaultDendrogramOptions())

	assert.InDelta(t, 9.8, dg.ColorThreshold, 1e-12)
	assert.False(t, dg.Truncated)
	assert.Equal(t, []Leaf{{4, 1}, {0, 1}, {1, 1}, {2, 1}, {3, 1}}, dg.Leaves)
	require.Len(t, dg.Links, 4)

	colors := map[int]int{}
	for _, l := range dg.Links {
		colors[l.ID] = l.Color
	}
	assert.Equal(t, map[int]int{8: AboveThreshold, 7: 0, 5: 0, 6: 0}, colors)
	assert.Equal(t, 1, dg.ColorGroups)
}

func TestDendrogram_ExplicitThreshold(t *testing.T) {
	two := 2.0
	dg := singleLine(t).Dendrogram(DendrogramOptions{ColorThreshold: &two})

	colors := map[int]int{}
	for _, l := range dg.Links {
		colors[l.ID] = l.Color
	}
	assert.Equal(t, map[int]int{8: AboveThreshold, 7: AboveThreshold, 5: 0, 6: 1}, colors)
	assert.Equal(t, 2, dg.ColorGroups)
}

func TestDendrogram_ColoringDisabled(t *testing.T) {
	zero := 0.0
	dg := singleLine(t).Dendrogram(DendrogramOptions{ColorThreshold: &zero})

	for _, l := range dg.Links {
		assert.Equal(t, AboveThreshold, l.Color)
	}
	assert.Zero(t, dg.ColorGroups)
}

func TestDendrogram_CustomFraction(t *testing.T) {
	tree := singleLine(t)
	assert.InDelta(t, 7.0, tree.ResolveColorThreshold(DendrogramOptions{ColorThresholdFraction: 0.5}), 1e-12)
	assert.InDelta(t, 9.8, tree.ResolveColorThreshold(DendrogramOptions{}), 1e-12)
}

func TestDendrogram_LastP(t *testing.T) {
	dg := singleLine(t).Dendrogram(DendrogramOptions{LastP: 2})

	assert.True(t, dg.Truncated)
	assert.Equal(t, []Leaf{{4, 1}, {7, 4}}, dg.Leaves)
	require.Len(t, dg.Links, 1)
	assert.Equal(t, 8, dg.Links[0].ID)

	full := singleLine(t).Dendrogram(DendrogramOptions{LastP: 100})
	assert.False(t, full.Truncated)
	assert.Len(t, full.Leaves, 5)
}
