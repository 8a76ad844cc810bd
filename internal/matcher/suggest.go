package matcher

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.75
	defaultFuzzyThreshold    = 0.88
)

type suggestConfig struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

func defaultSuggestConfig() suggestConfig {
	return suggestConfig{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
}

// WithSuggestThresholds sets the minimum Jaro-Winkler scores used by
// [Matcher.Suggest]: phonetic applies when the search and a sound name share a
// Double Metaphone code, fuzzy applies otherwise. Defaults: 0.75 and 0.88.
func WithSuggestThresholds(phonetic, fuzzy float64) Option {
	return func(m *Matcher) {
		m.suggest.phoneticThreshold = phonetic
		m.suggest.fuzzyThreshold = fuzzy
	}
}

// Suggest returns the readable name of the cached sound that sounds most like
// search, for "did you mean" hints after [Matcher.Find] misses. Speech
// transcripts often mangle names ("dore chyme"), which the tiered matcher
// cannot recover from. Suggest never influences what Find returns.
func (m *Matcher) Suggest(search string) (string, bool) {
	entries, err := m.catalog.List()
	if err != nil || len(entries) == 0 {
		return "", false
	}
	query := strings.Join(strings.Fields(strings.ToLower(search)), " ")
	if query == "" {
		return "", false
	}
	queryTokens := strings.Fields(query)
	queryCodes := metaphoneCodes(queryTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, e := range entries {
		name := strings.ToLower(e.ReadableName)
		nameTokens := strings.Fields(name)
		if len(nameTokens) == 0 {
			continue
		}
		score := similarity(queryTokens, nameTokens, query, name)
		phonetic := sharesCode(queryCodes, metaphoneCodes(nameTokens))

		switch {
		case phonetic && score >= m.suggest.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = e.ReadableName, score, true
			}
		case !phonetic && !bestPhonetic && score >= m.suggest.fuzzyThreshold && score > bestScore:
			best, bestScore = e.ReadableName, score
		}
	}
	return best, best != ""
}

// metaphoneCodes returns the union of primary and secondary Double Metaphone
// codes of tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func sharesCode(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score over the full strings, the
// space-stripped strings and every token pair.
func similarity(aTokens, bTokens []string, a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)
	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
