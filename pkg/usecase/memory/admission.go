package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minExchangeLength = 30

// greetingPatterns match user turns that carry nothing but a greeting,
// thanks or acknowledgement
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[¡¿\s]*(hi|hello|hey|yo|hola|buenas|buenos d[ií]as|buenas (tardes|noches)|good (morning|afternoon|evening|night))( there)?[\s!.,?¡¿]*$`),
	regexp.MustCompile(`(?i)^[¡¿\s]*(thanks|thank you|thx|gracias|muchas gracias|ok|okay|vale|cool|nice|great|perfect|perfecto|genial)[\s!.,?¡¿]*$`),
	regexp.MustCompile(`(?i)^[¡¿\s]*(bye|goodbye|see you|adi[oó]s|hasta luego|chao|nos vemos)[\s!.,?¡¿]*$`),
	regexp.MustCompile(`(?i)^[¡¿\s]*(how are you|what'?s up|qu[eé] tal|c[oó]mo est[aá]s)[\s!.,?¡¿]*$`),
}

// failurePatterns match assistant turns expressing inability
var failurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi('m| am) (unable|not able) to\b`),
	regexp.MustCompile(`(?i)\bi (can(no|')t|don'?t have access)\b`),
	regexp.MustCompile(`(?i)\b(sorry|i apologi[sz]e),? (but )?i (can(no|')t|couldn'?t|don'?t know)\b`),
	regexp.MustCompile(`(?i)\bno (puedo|sé|tengo acceso|tengo informaci[oó]n)`),
	regexp.MustCompile(`(?i)\blo siento,? (pero )?no\b`),
	regexp.MustCompile(`(?i)\b(something went wrong|an error occurred|ocurri[oó] un error)\b`),
}

func isGreeting(userText string) bool {
	s := strings.TrimSpace(userText)
	for _, p := range greetingPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func isFailure(assistantText string) bool {
	for _, p := range failurePatterns {
		if p.MatchString(assistantText) {
			return true
		}
	}
	return false
}

func tooShort(userText, assistantText string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(userText)) +
		utf8.RuneCountInString(strings.TrimSpace(assistantText))
	return n < minExchangeLength
}
