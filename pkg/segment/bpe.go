package segment

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func loadCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// BPE segments text into cl100k byte-pair pieces. Pieces are trimmed and lowercased;
// whitespace and punctuation-only pieces are dropped. Useful for mixed-script corpora
// where no word boundary rules apply.
type BPE struct {
	codec tokenizer.Codec
}

// NewBPE loads the cl100k codec. The vocabulary is loaded once per process.
func NewBPE() (*BPE, error) {
	c, err := loadCodec()
	if err != nil {
		return nil, fmt.Errorf("load cl100k codec: %w", err)
	}
	return &BPE{codec: c}, nil
}

// Name returns "bpe".
func (b *BPE) Name() string { return NameBPE }

// Segment splits text into BPE pieces. Text the codec rejects yields no tokens.
func (b *BPE) Segment(text string) []string {
	_, pieces, err := b.codec.Encode(text)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || !wordlike(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
