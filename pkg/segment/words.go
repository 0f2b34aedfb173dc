package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
)

// EnglishStopWords is a small list of function words that carry no topical signal.
var EnglishStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"for": true, "from": true, "with": true, "about": true, "into": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "by": true,
	"it": true, "its": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "why": true,
}

// Words segments text on Unicode (UAX #29) word boundaries. Segments without a letter or
// digit are dropped. Han ideographs come out of UAX #29 one per segment, so HanBigrams
// rejoins each contiguous run into overlapping bigrams, which approximates dictionary
// segmentation of Chinese well enough for term weighting.
type Words struct {
	Lowercase  bool
	HanBigrams bool
	StopWords  map[string]bool
}

// Name returns "words".
func (w Words) Name() string { return NameWords }

// Segment splits text into tokens.
func (w Words) Segment(text string) []string {
	var (
		out []string
		run []string
	)

	flush := func() {
		switch {
		case len(run) == 1:
			out = append(out, run[0])
		case len(run) > 1:
			for i := 0; i+1 < len(run); i++ {
				out = append(out, run[i]+run[i+1])
			}
		}
		run = run[:0]
	}

	tokens := words.FromString(text)
	for tokens.Next() {
		tok := tokens.Value()
		if !wordlike(tok) {
			flush()
			continue
		}
		if w.HanBigrams && isHan(tok) {
			run = append(run, tok)
			continue
		}
		flush()
		if w.Lowercase {
			tok = strings.ToLower(tok)
		}
		if w.StopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	flush()

	return out
}

// wordlike reports whether s contains at least one letter or digit.
func wordlike(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// isHan reports whether s is a single Han ideograph.
func isHan(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	return size == len(s) && unicode.Is(unicode.Han, r)
}
