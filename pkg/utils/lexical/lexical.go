package lexical

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// RelevanceThreshold is the minimum normalized score of a relevant candidate
const RelevanceThreshold = 1.0

const minTokenLength = 3

// Anything that is not an ASCII alphanumeric, a Latin letter with diacritics
// or whitespace is dropped.
var punctuation = regexp.MustCompile(`[^a-z0-9\s\x{00C0}-\x{024F}]`)

// Tokenize lowercases text, strips punctuation and returns whitespace
// separated tokens longer than two characters.
func Tokenize(text string) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), "")

	var tokens []string
	for _, field := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(field) < minTokenLength {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// Score rates candidate against already tokenized query. Each pair of query
// and candidate tokens adds 2 on exact match and 1 when either contains the
// other. The sum is divided by the number of query tokens.
func Score(queryTokens []string, candidate string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	candidateTokens := Tokenize(candidate)

	var points int
	for _, q := range queryTokens {
		for _, c := range candidateTokens {
			switch {
			case q == c:
				points += 2
			case strings.Contains(c, q), strings.Contains(q, c):
				points++
			}
		}
	}

	return float64(points) / float64(len(queryTokens))
}

// IsRelevant reports whether a normalized score passes RelevanceThreshold
func IsRelevant(score float64) bool {
	return score >= RelevanceThreshold
}
