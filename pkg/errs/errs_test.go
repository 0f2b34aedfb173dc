package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "insufficient data", err: InsufficientData("1 document"), want: KindInsufficientData},
		{name: "insufficient features", err: InsufficientFeatures("0 terms"), want: KindInsufficientFeatures},
		{name: "parameter range", err: Range("kmeans", "k", 1, "2 <= k <= 7"), want: KindParameterRange},
		{name: "degenerate", err: Degenerate("1 cluster"), want: KindDegenerateClustering},
		{name: "wrapped twice", err: fmt.Errorf("stage: %w", InsufficientData("x")), want: KindInsufficientData},
		{name: "unknown", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestParameterRangeError(t *testing.T) {
	err := Range("agglomerative", "metric", "cosine", "euclidean when linkage is ward")

	var pre *ParameterRangeError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "metric", pre.Param)
	assert.ErrorIs(t, err, ErrParameterRange)
	assert.Contains(t, err.Error(), "agglomerative")
	assert.Contains(t, err.Error(), "metric=cosine")

	noAlg := Range("", "max_df", 1.5, "0 < max_df <= 1")
	assert.Equal(t, "parameter out of range: max_df=1.5 (want 0 < max_df <= 1)", noAlg.Error())
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(Degenerate("x")))
	assert.False(t, IsUserError(errors.New("boom")))
	assert.False(t, IsUserError(nil))
}
