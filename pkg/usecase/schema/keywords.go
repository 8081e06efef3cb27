package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minKeywordLength = 3
	minStemLength    = 4
)

var stopWords = toSet(
	// Spanish
	"los", "las", "una", "unos", "unas", "del", "que", "con", "por", "para",
	"como", "cual", "cuales", "cuantos", "cuantas", "cuanto", "cuanta",
	"donde", "cuando", "quien", "quienes", "este", "esta", "estos", "estas",
	"ese", "esa", "esos", "esas", "sus", "son", "fue", "han", "hay", "muy",
	"mas", "pero", "sin", "sobre", "entre", "todo", "todos", "todas",
	"dame", "muestra", "muestrame", "dime", "quiero", "tengo", "puedes",
	// English
	"the", "and", "for", "with", "from", "that", "this", "these", "those",
	"what", "which", "who", "whom", "where", "when", "how", "many", "much",
	"are", "was", "were", "have", "has", "had", "all", "any", "each",
	"show", "give", "list", "tell", "can", "you", "please", "about", "into",
)

// suffixes are tried in order; the first one that leaves a long enough stem
// is stripped, and stripping repeats on the result
var suffixes = []string{
	"aciones", "iciones", "amientos", "imientos", "amiento", "imiento",
	"ations", "ation", "mente", "ciones", "cion", "idades", "idad",
	"ores", "oras", "eros", "eras", "istas", "ista",
	"ings", "ing", "ies", "es", "os", "as", "ed", "er", "or", "s", "a", "o",
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// normalize lowercases s and strips diacritics
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Keywords extracts the matching keywords of query: every significant token
// plus its suffix-stripped stems and its truncations down to four characters
func Keywords(query string) []string {
	tokens := strings.FieldsFunc(normalize(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{})
	var keywords []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}

	for _, token := range tokens {
		if len([]rune(token)) < minKeywordLength {
			continue
		}
		if _, ok := stopWords[token]; ok {
			continue
		}

		add(token)
		for _, stem := range stems(token) {
			add(stem)
		}
		for _, t := range truncations(token) {
			add(t)
		}
	}

	return keywords
}

func stems(token string) []string {
	var result []string
	current := token
	for {
		stripped := false
		for _, suffix := range suffixes {
			if !strings.HasSuffix(current, suffix) {
				continue
			}
			stem := strings.TrimSuffix(current, suffix)
			if len([]rune(stem)) < minStemLength {
				continue
			}
			result = append(result, stem)
			current = stem
			stripped = true
			break
		}
		if !stripped {
			return result
		}
	}
}

func truncations(token string) []string {
	r := []rune(token)
	var result []string
	for n := len(r) - 1; n >= minStemLength; n-- {
		result = append(result, string(r[:n]))
	}
	return result
}
