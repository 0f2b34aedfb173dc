package cluster

import (
	"errors"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/textvec"
)

type agglomerative struct {
	k      int
	method linkage.Method
	metric distance.Metric
}

func newAgglomerative(p Params) (Strategy, error) {
	a := &agglomerative{k: p.K, method: p.Linkage, metric: p.Metric}
	if a.method == "" {
		a.method = linkage.Ward
	}
	if a.metric == "" {
		a.metric = distance.Euclidean
	}
	if a.k < 2 {
		return nil, errs.Range(string(Agglomerative), "k", p.K, "k >= 2")
	}
	if err := linkage.Validate(a.method, a.metric); err != nil {
		var pre *errs.ParameterRangeError
		if errors.As(err, &pre) {
			return nil, errs.Range(string(Agglomerative), pre.Param, pre.Value, pre.Constraint)
		}
		return nil, err
	}
	return a, nil
}

func (a *agglomerative) Algorithm() Algorithm { return Agglomerative }

func (a *agglomerative) Fit(m *textvec.Matrix) (Labels, error) {
	labels, _, err := a.FitTree(m)
	return labels, err
}

// FitTree builds the complete merge tree and cuts it at k clusters.
func (a *agglomerative) FitTree(m *textvec.Matrix) (Labels, *linkage.Tree, error) {
	if err := checkK(Agglomerative, a.k, m.Rows()); err != nil {
		return nil, nil, err
	}
	tree, err := linkage.Build(m.DenseRows(), a.method, a.metric)
	if err != nil {
		return nil, nil, err
	}
	labels, err := tree.Cut(a.k)
	if err != nil {
		return nil, nil, err
	}
	return Canonicalize(labels), tree, nil
}
