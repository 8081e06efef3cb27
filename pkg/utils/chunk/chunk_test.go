package chunk_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/utils/chunk"
)

func sentence(word string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = word
	}
	return strings.Join(words, " ") + "."
}

func TestParagraphs(t *testing.T) {
	t.Run("small paragraphs are packed together", func(t *testing.T) {
		chunks := chunk.Paragraphs("first\n\nsecond\n\n\nthird", "kb", 500, 50)
		gt.A(t, chunks).Length(1)
		gt.Equal(t, chunks[0].Content, "first\n\nsecond\n\nthird")
		gt.Equal(t, chunks[0].SourceID, "kb")
	})

	t.Run("overlap is carried into next chunk", func(t *testing.T) {
		first := sentence("alpha", 50)  // 300 chars
		second := sentence("bravo", 50) // 300 chars
		chunks := chunk.Paragraphs(first+"\n\n"+second, "kb", 500, 50)

		gt.A(t, chunks).Length(2)
		gt.Equal(t, chunks[0].Content, first)

		overlap := first[len(first)-50:]
		gt.True(t, strings.HasPrefix(chunks[1].Content, strings.TrimSpace(overlap)))
		gt.True(t, strings.HasSuffix(chunks[1].Content, second))
	})

	t.Run("overlap is shortened to stay within size", func(t *testing.T) {
		first := sentence("alpha", 50)  // 300 chars
		second := sentence("bravo", 80) // 480 chars
		chunks := chunk.Paragraphs(first+"\n\n"+second, "kb", 500, 50)

		gt.A(t, chunks).Length(2)
		for _, c := range chunks {
			gt.N(t, utf8.RuneCountInString(c.Content)).LessOrEqual(500)
		}
		gt.True(t, strings.HasSuffix(chunks[1].Content, second))
		gt.True(t, len(chunks[1].Content) > len(second))
	})

	t.Run("oversized paragraph gets no overlap", func(t *testing.T) {
		first := sentence("alpha", 50)    // 300 chars
		second := sentence("bravo", 100) // 600 chars
		third := sentence("delta", 10)   // 60 chars
		chunks := chunk.Paragraphs(first+"\n\n"+second+"\n\n"+third, "kb", 500, 50)

		gt.A(t, chunks).Length(3)
		gt.Equal(t, chunks[0].Content, first)
		gt.Equal(t, chunks[1].Content, second)
		gt.True(t, strings.HasSuffix(chunks[2].Content, third))
		gt.N(t, utf8.RuneCountInString(chunks[2].Content)).LessOrEqual(500)
	})

	t.Run("empty input", func(t *testing.T) {
		gt.A(t, chunk.Paragraphs(" \n\n \n", "kb", 500, 50)).Length(0)
	})

	t.Run("idempotent", func(t *testing.T) {
		text := sentence("uno", 80) + "\n\n" + sentence("dos", 120) + "\n\n" + sentence("tres", 30)
		gt.Equal(t, chunk.Paragraphs(text, "kb", 500, 50), chunk.Paragraphs(text, "kb", 500, 50))
	})
}

func TestSplitter(t *testing.T) {
	text := strings.Join([]string{
		sentence("lorem", 60),
		sentence("ipsum", 40) + "\n" + sentence("dolor", 40),
		sentence("amet", 150),
	}, "\n\n")

	s := chunk.NewSplitter(500, 50)
	chunks := s.Split(text)

	t.Run("chunks respect size", func(t *testing.T) {
		gt.A(t, chunks).Longer(1)
		for _, c := range chunks {
			gt.True(t, utf8.RuneCountInString(c) <= 500)
			gt.NotEqual(t, strings.TrimSpace(c), "")
		}
	})

	t.Run("words are never split", func(t *testing.T) {
		allowed := map[string]bool{
			"lorem": true, "ipsum": true, "dolor": true, "amet": true,
			"lorem.": true, "ipsum.": true, "dolor.": true, "amet.": true,
		}
		for _, c := range chunks {
			for _, w := range strings.Fields(c) {
				gt.True(t, allowed[w])
			}
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		gt.Equal(t, s.Split(text), chunks)
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		gt.Equal(t, s.Split("  hello world  "), []string{"hello world"})
	})

	t.Run("falls back to characters", func(t *testing.T) {
		long := strings.Repeat("x", 1200)
		parts := chunk.NewSplitter(500, 50).Split(long)
		gt.A(t, parts).Length(3)
		for _, p := range parts {
			gt.True(t, utf8.RuneCountInString(p) <= 500)
		}
	})
}

func TestForFile(t *testing.T) {
	md := "# Title\n\nintro\n\n## Section\n\nbody text"
	s := chunk.ForFile("notes.md", []byte(md), 20, 0)
	chunks := s.Split(md)

	gt.Equal(t, chunks, []string{"# Title\n\nintro", "## Section", "body text"})
	gt.Equal(t, chunk.Language("notes.md", []byte(md)), "Markdown")
}
