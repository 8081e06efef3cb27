package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
)

var (
	// TextSeparators prefers paragraph, line, sentence, word and finally
	// character boundaries.
	TextSeparators = []string{"\n\n", "\n", ". ", " ", ""}

	// MarkdownSeparators additionally prefers heading boundaries.
	MarkdownSeparators = []string{"\n# ", "\n## ", "\n### ", "\n#### ", "\n\n", "\n", ". ", " ", ""}
)

// Splitter splits text recursively on the first separator present in the
// text, descending to the next separator only for pieces that are still too
// large. Separators are kept at the start of the piece that follows them.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter creates a Splitter. TextSeparators are used when separators is
// empty.
func NewSplitter(size, overlap int, separators ...string) *Splitter {
	if len(separators) == 0 {
		separators = TextSeparators
	}
	return &Splitter{
		size:       size,
		overlap:    overlap,
		separators: separators,
	}
}

// ForFile returns a Splitter with separators chosen by the detected language
// of the file.
func ForFile(filename string, content []byte, size, overlap int) *Splitter {
	if Language(filename, content) == "Markdown" {
		return NewSplitter(size, overlap, MarkdownSeparators...)
	}
	return NewSplitter(size, overlap, TextSeparators...)
}

// Language detects the language of a file by name and content
func Language(filename string, content []byte) string {
	return enry.GetLanguage(filename, content)
}

// IsBinary reports whether content looks like binary data
func IsBinary(content []byte) bool {
	return enry.IsBinary(content)
}

// Split returns the chunks of text. Every chunk is trimmed and non-empty.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := ""
	var next []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < s.size {
			pending = append(pending, piece)
			continue
		}

		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}

		if len(next) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
		} else {
			chunks = append(chunks, s.split(piece, next)...)
		}
	}

	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}

	return chunks
}

// merge joins small pieces into chunks up to size, keeping up to overlap
// characters of trailing pieces at the head of the following chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)

	flush := func() {
		if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
			chunks = append(chunks, doc)
		}
	}

	for _, piece := range pieces {
		length := utf8.RuneCountInString(piece)

		if total+length > s.size && len(current) > 0 {
			flush()
			for total > s.overlap || (total+length > s.size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += length
	}
	flush()

	return chunks
}

func splitKeepSeparator(text, separator string) []string {
	if separator == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, separator)
	pieces := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = separator + p
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
