package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// Count returns the number of tokens of text in cl100k_base encoding. When
// the encoding cannot be loaded it falls back to Estimate.
func Count(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err == nil {
			encoding = enc
		}
	})

	if encoding == nil {
		return Estimate(text)
	}
	return len(encoding.Encode(text, nil, nil))
}

// Estimate approximates the token count as one token per four characters
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
