// Package segment provides the word segmentation contract consumed by the vectorizer,
// together with a few ready-made segmenters.
package segment

import (
	"fmt"
	"strings"
)

// Segmenter splits raw text into an ordered sequence of tokens.
type Segmenter interface {
	Segment(text string) []string
	Name() string
}

// Func adapts a plain function to the Segmenter interface.
type Func func(text string) []string

// Segment calls f(text).
func (f Func) Segment(text string) []string { return f(text) }

// Name returns "func".
func (f Func) Name() string { return "func" }

// Names of the built-in segmenters.
const (
	NameWords      = "words"
	NameBPE        = "bpe"
	NameWhitespace = "whitespace"
)

// Whitespace splits on Unicode white space and lowercases every token.
var Whitespace Segmenter = whitespace{}

type whitespace struct{}

func (whitespace) Segment(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func (whitespace) Name() string { return NameWhitespace }

// Default returns the segmenter used when a request does not name one: Unicode word
// boundaries, lowercased, with Han runs split into overlapping bigrams.
func Default() Segmenter {
	return Words{Lowercase: true, HanBigrams: true}
}

// ByName resolves a built-in segmenter. stopWords is applied to the words segmenter only.
func ByName(name string, stopWords map[string]bool) (Segmenter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameWords:
		return Words{Lowercase: true, HanBigrams: true, StopWords: stopWords}, nil
	case NameWhitespace:
		return Whitespace, nil
	case NameBPE:
		return NewBPE()
	default:
		return nil, fmt.Errorf("unknown segmenter %q", name)
	}
}
