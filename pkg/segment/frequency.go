package segment

import "sort"

// TermCount is a token and the number of times it occurred.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Count tallies the tokens produced by s over every text.
func Count(s Segmenter, texts []string) map[string]int {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, tok := range s.Segment(t) {
			counts[tok]++
		}
	}
	return counts
}

// TopTerms returns the n most frequent terms, ties broken lexically. n <= 0 returns all.
func TopTerms(counts map[string]int, n int) []TermCount {
	out := make([]TermCount, 0, len(counts))
	for term, c := range counts {
		out = append(out, TermCount{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
