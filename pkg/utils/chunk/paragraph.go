package chunk

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/recall/pkg/model"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Paragraphs packs paragraphs of text greedily into chunks of at most size
// characters. When a chunk is closed, up to overlap of its last characters are
// carried into the next one, shortened or dropped so that the next chunk stays
// within size. A single paragraph longer than size becomes its own chunk.
func Paragraphs(text, sourceID string, size, overlap int) []model.Chunk {
	var paragraphs []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []model.Chunk
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, model.Chunk{Content: s, SourceID: sourceID})
		}
	}

	var current []rune
	for _, p := range paragraphs {
		para := []rune(p)
		if len(current) > 0 && len(current)+len(para)+2 > size {
			emit(string(current))
			carry := tail(current, min(overlap, size-len(para)-2))
			current = nil
			if len(carry) > 0 {
				current = append(carry, []rune("\n\n")...)
			}
			current = append(current, para...)
			continue
		}
		if len(current) > 0 {
			current = append(current, []rune("\n\n")...)
		}
		current = append(current, para...)
	}
	emit(string(current))

	return chunks
}

func tail(r []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if len(r) <= n {
		return append([]rune(nil), r...)
	}
	return append([]rune(nil), r[len(r)-n:]...)
}
