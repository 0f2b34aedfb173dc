// Package cluster partitions vectorized documents with one of several interchangeable
// algorithms selected by name.
package cluster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/textvec"
)

// Algorithm names a clustering strategy.
type Algorithm string

const (
	KMeans        Algorithm = "kmeans"
	Agglomerative Algorithm = "agglomerative"
	DBSCAN        Algorithm = "dbscan"
	BIRCH         Algorithm = "birch"
)

// Algorithms lists every registered algorithm in display order.
var Algorithms = []Algorithm{KMeans, Agglomerative, DBSCAN, BIRCH}

// ErrUnknownAlgorithm is returned for names outside Algorithms. It also matches
// errs.ErrParameterRange.
var ErrUnknownAlgorithm = errors.New("unknown clustering algorithm")

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := constructors[a]; !ok {
		return "", fmt.Errorf("%w %q: %w", ErrUnknownAlgorithm, s, errs.ErrParameterRange)
	}
	return a, nil
}

// Strategy fits a partition to a term-weight matrix.
type Strategy interface {
	Algorithm() Algorithm
	Fit(m *textvec.Matrix) (Labels, error)
}

// HierarchicalStrategy is implemented by strategies that build a full merge tree while
// fitting.
type HierarchicalStrategy interface {
	Strategy
	FitTree(m *textvec.Matrix) (Labels, *linkage.Tree, error)
}

// Params carries the parameters of every algorithm; each strategy reads its own subset.
type Params struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm"`

	// K is the requested cluster count for kmeans and agglomerative. For birch, 0 keeps
	// one cluster per leaf subcluster.
	K int `yaml:"k" json:"k"`

	Seed    int64 `yaml:"seed" json:"seed"`
	MaxIter int   `yaml:"max_iter" json:"max_iter"`
	NInit   int   `yaml:"n_init" json:"n_init"`

	Linkage linkage.Method `yaml:"linkage" json:"linkage"`
	// Metric is empty for the algorithm's default: euclidean for agglomerative, cosine
	// for dbscan.
	Metric distance.Metric `yaml:"metric" json:"metric"`

	Eps float64 `yaml:"eps" json:"eps"`
	// MinSamples is the neighborhood size, self included, that makes a core point.
	// nil picks DefaultMinSamples(rows).
	MinSamples *int `yaml:"min_samples,omitempty" json:"min_samples,omitempty"`

	Threshold       float64 `yaml:"threshold" json:"threshold"`
	BranchingFactor int     `yaml:"branching_factor" json:"branching_factor"`
}

// Default parameter values.
const (
	DefaultK               = 4
	DefaultSeed            = 42
	DefaultMaxIter         = 300
	DefaultNInit           = 10
	DefaultEps             = 0.5
	DefaultThreshold       = 0.5
	DefaultBranchingFactor = 50
)

// DefaultParams returns kmeans with K=4 and the defaults of every other algorithm.
func DefaultParams() Params {
	return Params{
		Algorithm:       KMeans,
		K:               DefaultK,
		Seed:            DefaultSeed,
		MaxIter:         DefaultMaxIter,
		NInit:           DefaultNInit,
		Linkage:         linkage.Ward,
		Eps:             DefaultEps,
		Threshold:       DefaultThreshold,
		BranchingFactor: DefaultBranchingFactor,
	}
}

// IntParam returns a pointer to v for optional integer parameters such as MinSamples.
func IntParam(v int) *int { return &v }

// MaxClusters is the largest K worth offering for rows documents.
func MaxClusters(rows int) int {
	return min(rows-1, 20)
}

var constructors = map[Algorithm]func(Params) (Strategy, error){
	KMeans:        newKMeans,
	Agglomerative: newAgglomerative,
	DBSCAN:        newDBSCAN,
	BIRCH:         newBIRCH,
}

// New builds the strategy p.Algorithm names. Parameters that do not depend on the data
// are validated here; the rest are checked by Fit. Zero values are validated like any
// other value, start from DefaultParams to get defaults.
func New(p Params) (Strategy, error) {
	ctor, ok := constructors[p.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, p.Algorithm)
	}
	return ctor(p)
}

// Info describes an algorithm for listings.
type Info struct {
	Name        Algorithm `json:"name"`
	Description string    `json:"description"`
	Params      []string  `json:"params"`
	EmitsNoise  bool      `json:"emits_noise"`
	NeedsK      bool      `json:"needs_k"`
}

// Describe lists every algorithm.
func Describe() []Info {
	return []Info{
		{
			Name:        KMeans,
			Description: "centroid partition into exactly k clusters, k-means++ seeded",
			Params:      []string{"k", "seed", "max_iter", "n_init"},
			NeedsK:      true,
		},
		{
			Name:        Agglomerative,
			Description: "bottom-up merge tree cut at k clusters",
			Params:      []string{"k", "linkage", "metric"},
			NeedsK:      true,
		},
		{
			Name:        DBSCAN,
			Description: "density-based clusters, sparse points become noise",
			Params:      []string{"eps", "min_samples", "metric"},
			EmitsNoise:  true,
		},
		{
			Name:        BIRCH,
			Description: "CF-tree summarization with an optional global step to k clusters",
			Params:      []string{"threshold", "branching_factor", "k"},
		},
	}
}
