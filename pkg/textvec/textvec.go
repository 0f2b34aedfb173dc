// Package textvec turns a corpus of short documents into a sparse TF-IDF matrix.
package textvec

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/segment"
)

const (
	DefaultMaxDF = 0.90
	DefaultMinDF = 2
)

// Options controls vocabulary pruning and tokenization.
type Options struct {
	// MaxDF drops terms that appear in more than MaxDF*N documents. Must be in (0, 1].
	MaxDF float64 `yaml:"max_df" json:"max_df"`
	// MinDF drops terms that appear in fewer than MinDF documents. Must be >= 1.
	MinDF int `yaml:"min_df" json:"min_df"`
	// Segmenter tokenizes documents. Nil means segment.Default().
	Segmenter segment.Segmenter `yaml:"-" json:"-"`
}

// DefaultOptions returns MaxDF 0.90, MinDF 2 and the default segmenter.
func DefaultOptions() Options {
	return Options{MaxDF: DefaultMaxDF, MinDF: DefaultMinDF}
}

// Validate checks the pruning bounds.
func (o Options) Validate() error {
	if !(o.MaxDF > 0 && o.MaxDF <= 1) {
		return errs.Range("", "max_df", o.MaxDF, "0 < max_df <= 1")
	}
	if o.MinDF < 1 {
		return errs.Range("", "min_df", o.MinDF, "min_df >= 1")
	}
	return nil
}

// Vectorize tokenizes corpus and builds the TF-IDF matrix. Each kept term is weighted by
// its raw count times ln(N/df) and every document row is scaled to unit length.
func Vectorize(corpus []string, opts Options) (*Matrix, error) {
	n := len(corpus)
	if n < 2 {
		return nil, errs.InsufficientData("corpus has %d document(s), need at least 2", n)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	seg := opts.Segmenter
	if seg == nil {
		seg = segment.Default()
	}

	counts := make([]map[string]int, n)
	postings := make(map[string]*roaring.Bitmap)
	for i, doc := range corpus {
		tf := make(map[string]int)
		for _, tok := range seg.Segment(doc) {
			tf[tok]++
		}
		counts[i] = tf
		for term := range tf {
			bm, ok := postings[term]
			if !ok {
				bm = roaring.New()
				postings[term] = bm
			}
			bm.Add(uint32(i))
		}
	}

	maxDocs := opts.MaxDF * float64(n)
	vocab := make([]string, 0, len(postings))
	for term, bm := range postings {
		df := int(bm.GetCardinality())
		if float64(df) > maxDocs || df < opts.MinDF {
			continue
		}
		vocab = append(vocab, term)
	}
	if len(vocab) == 0 {
		return nil, errs.InsufficientFeatures(
			"no term survives max_df=%.2f min_df=%d over %d documents (%d distinct terms)",
			opts.MaxDF, opts.MinDF, n, len(postings))
	}
	sort.Strings(vocab)

	column := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for c, term := range vocab {
		column[term] = c
		idf[c] = math.Log(float64(n) / float64(postings[term].GetCardinality()))
	}

	m := &Matrix{
		rows:  make([]Row, n),
		norms: make([]float64, n),
		cols:  len(vocab),
		vocab: vocab,
		idf:   idf,
	}
	for i, tf := range counts {
		var r Row
		for term, c := range tf {
			col, ok := column[term]
			if !ok {
				continue
			}
			r.Indices = append(r.Indices, col)
			r.Values = append(r.Values, float64(c)*idf[col])
		}
		sortRow(&r)
		norm := math.Sqrt(r.Dot(r))
		if norm > 0 {
			for k := range r.Values {
				r.Values[k] /= norm
			}
			m.norms[i] = 1
		}
		m.rows[i] = r
	}
	return m, nil
}

func sortRow(r *Row) {
	order := make([]int, len(r.Indices))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return r.Indices[order[a]] < r.Indices[order[b]] })
	idx := make([]int, len(order))
	val := make([]float64, len(order))
	for k, o := range order {
		idx[k] = r.Indices[o]
		val[k] = r.Values[o]
	}
	r.Indices, r.Values = idx, val
}
