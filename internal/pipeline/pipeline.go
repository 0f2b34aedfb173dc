// Package pipeline runs one clustering request end to end: vectorize, cluster, score,
// project and, for the hierarchical algorithm, lay out the merge tree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/textcluster/pkg/cluster"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/projection"
	"github.com/thebtf/textcluster/pkg/quality"
	"github.com/thebtf/textcluster/pkg/textvec"
)

// Stage names.
const (
	StageVectorize  = "vectorize"
	StageCluster    = "cluster"
	StageQuality    = "quality"
	StageProjection = "projection"
	StageLinkage    = "linkage"
)

// Stage outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Request is one clustering job. Corpus order is preserved in every output.
type Request struct {
	ID         uuid.UUID                 `json:"id"`
	Corpus     []string                  `json:"corpus"`
	Vectorizer textvec.Options           `json:"vectorizer"`
	Cluster    cluster.Params            `json:"cluster"`
	Projection projection.Options        `json:"projection"`
	Dendrogram linkage.DendrogramOptions `json:"dendrogram"`
	// SkipProjection leaves Result.Projection nil, as used by sweeps.
	SkipProjection bool `json:"skip_projection,omitempty"`
}

// NewRequest returns a request for corpus with every option at its default.
func NewRequest(corpus []string) Request {
	return Request{
		ID:         uuid.New(),
		Corpus:     corpus,
		Vectorizer: textvec.DefaultOptions(),
		Cluster:    cluster.DefaultParams(),
		Projection: projection.DefaultOptions(),
		Dendrogram: linkage.DefaultDendrogramOptions(),
	}
}

// Quality is either both scores or the reason they are unavailable. The scores are set
// exactly when Available is true, a zero score included.
type Quality struct {
	Available  bool     `json:"available"`
	Cohesion   *float64 `json:"cohesion,omitempty"`
	Separation *float64 `json:"separation,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Kind       string   `json:"kind,omitempty"`
}

// Linkage is the merge tree and its dendrogram layout.
type Linkage struct {
	Tree       *linkage.Tree       `json:"tree"`
	Dendrogram *linkage.Dendrogram `json:"dendrogram"`
}

// StageReport records how one stage went.
type StageReport struct {
	Stage    string        `json:"stage"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
}

// Result holds every artifact derived from one partition.
type Result struct {
	RequestID             uuid.UUID          `json:"request_id"`
	Algorithm             cluster.Algorithm  `json:"algorithm"`
	Documents             int                `json:"documents"`
	Features              int                `json:"features"`
	Labels                cluster.Labels     `json:"labels"`
	EffectiveClusterCount int                `json:"effective_cluster_count"`
	NoiseCount            int                `json:"noise_count"`
	Quality               Quality            `json:"quality"`
	Projection            *projection.Result `json:"projection,omitempty"`
	Linkage               *Linkage           `json:"linkage,omitempty"`
	Stages                []StageReport      `json:"stages"`
}

// StageError is returned when a stage the partition depends on fails. No partial result
// accompanies it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// runState is owned by a single Run call and threaded through the stages.
type runState struct {
	req      Request
	matrix   *textvec.Matrix
	strategy cluster.Strategy
	labels   cluster.Labels
	tree     *linkage.Tree
	result   *Result
}

// Runner executes requests. It is safe for concurrent use; requests share nothing.
type Runner struct {
	metrics *metrics
}

// New returns a Runner that reports through the global OpenTelemetry meter provider.
func New() *Runner {
	return &Runner{metrics: newMetrics()}
}

// Run executes req. A vectorize or cluster failure aborts the request with a
// *StageError. Quality, projection and linkage failures are recorded on the result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	st := &runState{
		req: req,
		result: &Result{
			RequestID: req.ID,
			Algorithm: req.Cluster.Algorithm,
			Documents: len(req.Corpus),
		},
	}
	logger := log.With().Str("request_id", req.ID.String()).Str("algorithm", string(req.Cluster.Algorithm)).Logger()

	required := []struct {
		name string
		fn   func(*runState) error
	}{
		{StageVectorize, vectorize},
		{StageCluster, fitPartition},
	}
	for _, s := range required {
		if err := ctx.Err(); err != nil {
			r.metrics.run(ctx, req.Cluster.Algorithm, OutcomeFailed)
			return nil, &StageError{Stage: s.name, Err: err}
		}
		if err := r.stage(ctx, st, s.name, s.fn); err != nil {
			logger.Warn().Err(err).Str("stage", s.name).Msg("Clustering request failed")
			r.metrics.run(ctx, req.Cluster.Algorithm, OutcomeFailed)
			return nil, &StageError{Stage: s.name, Err: err}
		}
	}

	optional := []struct {
		name string
		fn   func(*runState) error
		skip bool
	}{
		{StageQuality, evaluate, false},
		{StageProjection, project, req.SkipProjection},
		{StageLinkage, layoutTree, st.tree == nil},
	}
	for _, s := range optional {
		if err := ctx.Err(); err != nil {
			r.metrics.run(ctx, req.Cluster.Algorithm, OutcomeFailed)
			return nil, &StageError{Stage: s.name, Err: err}
		}
		if s.skip {
			st.result.Stages = append(st.result.Stages, StageReport{Stage: s.name, Outcome: OutcomeSkipped})
			continue
		}
		if err := r.stage(ctx, st, s.name, s.fn); err != nil {
			logger.Warn().Err(err).Str("stage", s.name).Msg("Stage failed, continuing")
		}
	}

	logger.Debug().
		Int("documents", st.result.Documents).
		Int("features", st.result.Features).
		Int("clusters", st.result.EffectiveClusterCount).
		Int("noise", st.result.NoiseCount).
		Msg("Clustering request completed")
	r.metrics.run(ctx, req.Cluster.Algorithm, OutcomeOK)
	return st.result, nil
}

// stage times fn and appends its report.
func (r *Runner) stage(ctx context.Context, st *runState, name string, fn func(*runState) error) error {
	start := time.Now()
	err := fn(st)
	elapsed := time.Since(start)

	rep := StageReport{Stage: name, Outcome: OutcomeOK, Duration: elapsed}
	if err != nil {
		rep.Outcome = OutcomeFailed
		rep.Error = err.Error()
		rep.Kind = errs.Kind(err)
	}
	st.result.Stages = append(st.result.Stages, rep)
	r.metrics.stage(ctx, name, rep.Outcome, elapsed)

	log.Debug().
		Str("request_id", st.req.ID.String()).
		Str("stage", name).
		Str("outcome", rep.Outcome).
		Dur("elapsed", elapsed).
		Msg("Stage finished")
	return err
}

func vectorize(st *runState) error {
	m, err := textvec.Vectorize(st.req.Corpus, st.req.Vectorizer)
	if err != nil {
		return err
	}
	st.matrix = m
	st.result.Features = m.Cols()
	return nil
}

func fitPartition(st *runState) error {
	s, err := cluster.New(st.req.Cluster)
	if err != nil {
		return err
	}
	st.strategy = s

	var labels cluster.Labels
	if hs, ok := s.(cluster.HierarchicalStrategy); ok {
		labels, st.tree, err = hs.FitTree(st.matrix)
	} else {
		labels, err = s.Fit(st.matrix)
	}
	if err != nil {
		return err
	}
	if len(labels) != st.matrix.Rows() {
		return fmt.Errorf("%s returned %d labels for %d documents", s.Algorithm(), len(labels), st.matrix.Rows())
	}

	st.labels = labels
	st.result.Labels = labels
	st.result.EffectiveClusterCount = labels.EffectiveCount()
	st.result.NoiseCount = labels.NoiseCount()
	return nil
}

func evaluate(st *runState) error {
	scores, err := quality.Evaluate(st.matrix, st.labels)
	if err != nil {
		st.result.Quality = Quality{Reason: err.Error(), Kind: errs.Kind(err)}
		if errors.Is(err, errs.ErrDegenerateClustering) {
			// an unavailable score is a normal answer, not a stage failure
			return nil
		}
		return err
	}
	st.result.Quality = Quality{
		Available:  true,
		Cohesion:   &scores.Cohesion,
		Separation: &scores.Separation,
	}
	return nil
}

func project(st *runState) error {
	p, err := projection.Project(st.matrix.Dense(), st.req.Projection)
	if err != nil {
		return err
	}
	st.result.Projection = p
	return nil
}

func layoutTree(st *runState) error {
	st.result.Linkage = &Linkage{
		Tree:       st.tree,
		Dendrogram: st.tree.Dendrogram(st.req.Dendrogram),
	}
	return nil
}
