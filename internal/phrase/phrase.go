// Package phrase canonicalises free text so it can be used as a binding key
// or as a search key against the local sound catalog.
//
// Two normal forms exist:
//
//   - [ForStorage] produces the key under which bindings are persisted. It
//     strips punctuation and folds case and whitespace.
//   - [ForMatching] produces the key used when comparing a request with cached
//     sound names. It converts spoken numbers to digits and folds "-" and "_"
//     into spaces, but keeps punctuation.
//
// Both forms are idempotent and never fail; empty input yields "".
package phrase

import (
	"strings"
	"unicode"
)

// numberWords maps the closed vocabulary of spoken numbers to their digits.
var numberWords = map[string]string{
	"zero":      "0",
	"one":       "1",
	"two":       "2",
	"three":     "3",
	"four":      "4",
	"five":      "5",
	"six":       "6",
	"seven":     "7",
	"eight":     "8",
	"nine":      "9",
	"ten":       "10",
	"eleven":    "11",
	"twelve":    "12",
	"thirteen":  "13",
	"fourteen":  "14",
	"fifteen":   "15",
	"sixteen":   "16",
	"seventeen": "17",
	"eighteen":  "18",
	"nineteen":  "19",
	"twenty":    "20",
}

// ForStorage returns the storage key for text: punctuation removed, lowercased,
// whitespace runs collapsed to a single space and trimmed.
//
//	ForStorage("Play, It!  AGAIN") == "play it again"
func ForStorage(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if isPunct(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// WordsToDigits replaces every whitespace-separated token that names a number
// between zero and twenty (case-insensitive) with its digit string. Other
// tokens pass through unchanged. Tokens are re-joined with single spaces.
//
//	WordsToDigits("wrong one") == "wrong 1"
func WordsToDigits(text string) string {
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		if d, ok := numberWords[strings.ToLower(tok)]; ok {
			tokens[i] = d
		}
	}
	return strings.Join(tokens, " ")
}

var separators = strings.NewReplacer("-", " ", "_", " ")

// ForMatching returns the match key for text: spoken numbers become digits,
// "-" and "_" become spaces, the result is lowercased and whitespace is
// collapsed.
//
// Separators are folded before number conversion as well as after, so that
// "take-one" and "take one" share the key "take 1".
func ForMatching(text string) string {
	s := WordsToDigits(separators.Replace(text))
	return strings.ToLower(s)
}

// Words returns the tokens of the match key for text.
func Words(text string) []string {
	return strings.Fields(ForMatching(text))
}

// isPunct reports whether r is punctuation. ASCII symbols such as "$" or "~"
// count as punctuation too.
func isPunct(r rune) bool {
	if r < unicode.MaxASCII {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}
	return unicode.IsPunct(r)
}
