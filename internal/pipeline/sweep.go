package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/textcluster/pkg/cluster"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/textvec"
)

// SweepStep is the outcome of one K in a sweep.
type SweepStep struct {
	K                     int     `json:"k"`
	EffectiveClusterCount int     `json:"effective_cluster_count"`
	NoiseCount            int     `json:"noise_count"`
	Quality               Quality `json:"quality"`
	Error                 string  `json:"error,omitempty"`
	Kind                  string  `json:"kind,omitempty"`
}

// Sweep vectorizes req.Corpus once and fits req.Cluster for every K in [kmin, kmax],
// scoring each partition. kmin 0 means 2 and kmax 0 means min(rows-1, 20). A K that
// fails is reported on its step and the sweep continues. onStep, if set, sees every step
// as it completes.
func (r *Runner) Sweep(ctx context.Context, req Request, kmin, kmax int, onStep func(SweepStep)) ([]SweepStep, error) {
	if req.Cluster.Algorithm == cluster.DBSCAN {
		return nil, errs.Range("sweep", "algorithm", string(req.Cluster.Algorithm), "kmeans, agglomerative or birch")
	}
	if _, err := cluster.ParseAlgorithm(string(req.Cluster.Algorithm)); err != nil {
		return nil, err
	}

	st := &runState{req: req, result: &Result{RequestID: req.ID, Algorithm: req.Cluster.Algorithm}}
	if err := r.stage(ctx, st, StageVectorize, vectorize); err != nil {
		return nil, &StageError{Stage: StageVectorize, Err: err}
	}

	rows := st.matrix.Rows()
	if kmin == 0 {
		kmin = 2
	}
	if kmax == 0 {
		kmax = cluster.MaxClusters(rows)
	}
	if kmin < 2 {
		return nil, errs.Range("sweep", "kmin", kmin, "kmin >= 2")
	}
	if kmax < kmin || kmax > rows-1 {
		return nil, errs.Range("sweep", "kmax", kmax, fmt.Sprintf("%d <= kmax <= %d", kmin, rows-1))
	}

	steps := make([]SweepStep, 0, kmax-kmin+1)
	for k := kmin; k <= kmax; k++ {
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		step := r.sweepStep(ctx, req, st.matrix, k, evaluate)

		log.Debug().
			Str("request_id", req.ID.String()).
			Int("k", k).
			Int("clusters", step.EffectiveClusterCount).
			Bool("scored", step.Quality.Available).
			Msg("Sweep step")
		steps = append(steps, step)
		if onStep != nil {
			onStep(step)
		}
	}
	return steps, nil
}

// sweepStep fits req.Cluster with k clusters on m and scores the partition with score.
// A failing fit or score is recorded on the step.
func (r *Runner) sweepStep(ctx context.Context, req Request, m *textvec.Matrix, k int, score func(*runState) error) SweepStep {
	one := &runState{req: req, matrix: m, result: &Result{RequestID: req.ID}}
	one.req.Cluster.K = k
	step := SweepStep{K: k}
	if err := r.stage(ctx, one, StageCluster, fitPartition); err != nil {
		step.Error = err.Error()
		step.Kind = errs.Kind(err)
		return step
	}
	step.EffectiveClusterCount = one.result.EffectiveClusterCount
	step.NoiseCount = one.result.NoiseCount
	if err := r.stage(ctx, one, StageQuality, score); err != nil {
		log.Warn().Err(err).Str("request_id", req.ID.String()).Int("k", k).Msg("Sweep step scoring failed")
		step.Error = err.Error()
		step.Kind = errs.Kind(err)
	}
	step.Quality = one.result.Quality
	return step
}

// BestByCohesion returns the scored step with the highest cohesion, or false when no step
// could be scored.
func BestByCohesion(steps []SweepStep) (SweepStep, bool) {
	var (
		best  SweepStep
		found bool
	)
	for _, s := range steps {
		if !s.Quality.Available || s.Quality.Cohesion == nil {
			continue
		}
		if !found || *s.Quality.Cohesion > *best.Quality.Cohesion {
			best, found = s, true
		}
	}
	return best, found
}
