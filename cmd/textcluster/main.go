// Package main provides the textcluster command line: cluster the lines of files, stdin
// or the built-in sample corpus and print the result as JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/textcluster/internal/config"
	"github.com/thebtf/textcluster/internal/corpus"
	"github.com/thebtf/textcluster/internal/pipeline"
	"github.com/thebtf/textcluster/pkg/cluster"
	"github.com/thebtf/textcluster/pkg/distance"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/projection"
	"github.com/thebtf/textcluster/pkg/segment"
)

// Version is set at build time via ldflags.
var Version = "dev"

// options are the flags that do not map onto config fields.
type options struct {
	configPath string
	sample     bool
	sweep      bool
	kmin       int
	kmax       int
	top        int
	debug      bool
	compact    bool
	version    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("textcluster", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := &options{}
	overrides := registerFlags(fs, opts)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if opts.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr, NoColor: true})

	if opts.version {
		fmt.Fprintln(stdout, Version)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config")
		return 1
	}
	if err := overrides(cfg); err != nil {
		log.Error().Err(err).Msg("Invalid flag")
		return 2
	}

	docs, err := readCorpus(fs.Args(), opts.sample, stdin)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read corpus")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var out any
	switch {
	case opts.top != 0:
		out, err = topTerms(cfg, docs, opts.top)
	case opts.sweep:
		out, err = sweep(ctx, cfg, docs, opts.kmin, opts.kmax, stderr)
	default:
		out, err = clusterOnce(ctx, cfg, docs)
	}
	if err != nil {
		log.Error().Err(err).Str("kind", errs.Kind(err)).Msg("Clustering failed")
		if errs.IsUserError(err) {
			return 3
		}
		return 1
	}

	if err := writeJSON(stdout, out, !opts.compact); err != nil {
		log.Error().Err(err).Msg("Failed to write output")
		return 1
	}
	return 0
}

// registerFlags defines every flag on fs and returns a function that copies the flags
// the user actually set onto a loaded config.
func registerFlags(fs *flag.FlagSet, opts *options) func(*config.Config) error {
	fs.StringVar(&opts.configPath, "config", "", "Config file (default: ~/.textcluster/config.yml)")
	fs.BoolVar(&opts.sample, "sample", false, "Cluster the built-in sample corpus")
	fs.BoolVar(&opts.sweep, "sweep", false, "Score every K in [kmin, kmax] instead of one run")
	fs.IntVar(&opts.kmin, "kmin", 0, "Smallest K for -sweep (default 2)")
	fs.IntVar(&opts.kmax, "kmax", 0, "Largest K for -sweep (default min(documents-1, 20))")
	fs.IntVar(&opts.top, "top", 0, "Print the N most frequent terms instead of clustering (-1 for all)")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.compact, "compact", false, "Print single-line JSON")
	fs.BoolVar(&opts.version, "version", false, "Print the version and exit")

	algorithm := fs.String("algorithm", "", "kmeans, agglomerative, dbscan or birch")
	k := fs.Int("k", 0, "Number of clusters")
	seed := fs.Int64("seed", 0, "Random seed for kmeans")
	maxIter := fs.Int("max-iter", 0, "Lloyd iterations per kmeans run")
	nInit := fs.Int("n-init", 0, "Independent kmeans runs")
	link := fs.String("linkage", "", "ward, complete, average or single")
	metric := fs.String("metric", "", "euclidean, cosine or manhattan")
	eps := fs.Float64("eps", 0, "DBSCAN neighborhood radius")
	minSamples := fs.Int("min-samples", 0, "DBSCAN core point size (default max(1, min(5, documents/10)))")
	threshold := fs.Float64("threshold", 0, "BIRCH subcluster radius")
	branching := fs.Int("branching", 0, "BIRCH branching factor")
	maxDF := fs.Float64("max-df", 0, "Drop terms in more than this fraction of documents")
	minDF := fs.Int("min-df", 0, "Drop terms in fewer than this many documents")
	seg := fs.String("segmenter", "", "words, whitespace or bpe")
	stop := fs.String("stop-words", "", `Stop word list ("english")`)
	proj := fs.String("projection", "", "pca or tsne")
	perplexity := fs.Float64("perplexity", 0, "t-SNE perplexity")
	iterations := fs.Int("iterations", 0, "t-SNE iterations")
	colorThreshold := fs.Float64("color-threshold", 0, "Dendrogram color threshold (<= 0 disables coloring)")
	lastP := fs.Int("last-p", 0, "Dendrogram leaves shown")

	return func(cfg *config.Config) error {
		var err error
		fs.Visit(func(f *flag.Flag) {
			if err != nil {
				return
			}
			switch f.Name {
			case "algorithm":
				var a cluster.Algorithm
				a, err = cluster.ParseAlgorithm(*algorithm)
				cfg.Cluster.Algorithm = a
			case "k":
				cfg.Cluster.K = *k
			case "seed":
				cfg.Cluster.Seed = *seed
			case "max-iter":
				cfg.Cluster.MaxIter = *maxIter
			case "n-init":
				cfg.Cluster.NInit = *nInit
			case "linkage":
				var m linkage.Method
				m, err = linkage.ParseMethod(*link)
				cfg.Cluster.Linkage = m
			case "metric":
				var m distance.Metric
				m, err = distance.ParseMetric(*metric)
				cfg.Cluster.Metric = m
			case "eps":
				cfg.Cluster.Eps = *eps
			case "min-samples":
				cfg.Cluster.MinSamples = cluster.IntParam(*minSamples)
			case "threshold":
				cfg.Cluster.Threshold = *threshold
			case "branching":
				cfg.Cluster.BranchingFactor = *branching
			case "max-df":
				cfg.Vectorizer.MaxDF = *maxDF
			case "min-df":
				cfg.Vectorizer.MinDF = *minDF
			case "segmenter":
				cfg.Vectorizer.Segmenter = *seg
			case "stop-words":
				cfg.Vectorizer.StopWords = *stop
			case "projection":
				var m projection.Method
				m, err = projection.ParseMethod(*proj)
				cfg.Projection.Method = m
			case "perplexity":
				cfg.Projection.Perplexity = *perplexity
			case "iterations":
				cfg.Projection.Iterations = *iterations
			case "color-threshold":
				v := *colorThreshold
				cfg.Dendrogram.ColorThreshold = &v
			case "last-p":
				cfg.Dendrogram.LastP = *lastP
			}
			if err != nil {
				err = fmt.Errorf("-%s: %w", f.Name, err)
			}
		})
		return err
	}
}

// readCorpus reads documents from files, the sample corpus or stdin, in that order of
// preference.
func readCorpus(paths []string, sample bool, stdin io.Reader) ([]string, error) {
	switch {
	case len(paths) > 0:
		return corpus.ReadFiles(paths...)
	case sample:
		return corpus.Sample(), nil
	default:
		return corpus.ReadLines(stdin)
	}
}

func clusterOnce(ctx context.Context, cfg *config.Config, docs []string) (*pipeline.Result, error) {
	req, err := cfg.Request(docs)
	if err != nil {
		return nil, err
	}
	return pipeline.New().Run(ctx, req)
}

type sweepOutput struct {
	Steps []pipeline.SweepStep `json:"steps"`
	Best  *pipeline.SweepStep  `json:"best,omitempty"`
}

func sweep(ctx context.Context, cfg *config.Config, docs []string, kmin, kmax int, progress io.Writer) (*sweepOutput, error) {
	req, err := cfg.Request(docs)
	if err != nil {
		return nil, err
	}
	req.SkipProjection = true

	lo, hi := kmin, kmax
	if lo == 0 {
		lo = 2
	}
	if hi == 0 {
		hi = cluster.MaxClusters(len(docs))
	}
	total := hi - lo + 1
	if total < 0 {
		total = 0
	}
	bar := pb.New(total).SetWriter(progress).Start()
	defer bar.Finish()

	steps, err := pipeline.New().Sweep(ctx, req, kmin, kmax, func(pipeline.SweepStep) { bar.Increment() })
	if err != nil {
		return nil, err
	}
	out := &sweepOutput{Steps: steps}
	if best, ok := pipeline.BestByCohesion(steps); ok {
		out.Best = &best
	}
	return out, nil
}

func topTerms(cfg *config.Config, docs []string, n int) ([]segment.TermCount, error) {
	if len(docs) == 0 {
		return nil, errors.New("empty corpus")
	}
	opts, err := cfg.VectorizerOptions()
	if err != nil {
		return nil, err
	}
	return segment.TopTerms(segment.Count(opts.Segmenter, docs), n), nil
}

func writeJSON(w io.Writer, v any, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(string(data), "\n"))
	return err
}
