// Package matcher resolves a free-text search phrase against the local sound
// catalog.
//
// Resolution is tiered; the first tier that yields a candidate wins, and
// within a tier the first entry in catalog order wins:
//
//  1. Anaphora: a phrase containing the word "it" or "again", ignoring
//     surrounding punctuation, is replaced by the last description played
//     this session, if there is one.
//  2. Exact: the match key of the readable name equals the match key of the
//     phrase.
//  3. Subset: every phrase word is a word of the readable name.
//  4. Overlap: some phrase word is a substring of the readable name.
//  5. Filename: the phrase, or some phrase word, is a substring of the
//     lowercased filename.
//
// Match keys are produced by [phrase.ForMatching].
package matcher

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/DrTrintignant/Songbird/internal/catalog"
	"github.com/DrTrintignant/Songbird/internal/phrase"
)

// Tier identifies which matching stage resolved a lookup.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierSubset
	TierOverlap
	TierFilename
)

// String returns the lowercase tier name, or "miss" for [TierNone].
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSubset:
		return "subset"
	case TierOverlap:
		return "overlap"
	case TierFilename:
		return "filename"
	default:
		return "miss"
	}
}

// anaphora are the words that refer back to the previous request.
var anaphora = []string{"it", "again"}

// Lister supplies a fresh catalog snapshot. [*catalog.Catalog] implements it.
type Lister interface {
	List() ([]catalog.Entry, error)
}

// History supplies the last description played this session.
// [*playback.Session] implements it.
type History interface {
	LastDescription() (string, bool)
}

// Match is a successful lookup.
type Match struct {
	// Entry is the resolved catalog entry.
	Entry catalog.Entry

	// Tier is the stage that produced the match.
	Tier Tier

	// Query is the phrase that was actually searched. It differs from the
	// input when anaphora substitution applied.
	Query string
}

// Matcher resolves phrases against a catalog. It holds no mutable state of
// its own and is safe for concurrent use if its Lister and History are.
type Matcher struct {
	catalog Lister
	history History
	suggest suggestConfig
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// New returns a Matcher over c. history may be nil, which disables anaphora
// resolution.
func New(c Lister, history History, opts ...Option) *Matcher {
	m := &Matcher{
		catalog: c,
		history: history,
		suggest: defaultSuggestConfig(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Find resolves search against the current catalog. ok is false when no tier
// matched. err is non-nil only when the catalog could not be read.
func (m *Matcher) Find(search string) (match Match, ok bool, err error) {
	entries, err := m.catalog.List()
	if err != nil {
		return Match{}, false, fmt.Errorf("matcher: list catalog: %w", err)
	}
	if len(entries) == 0 {
		return Match{}, false, nil
	}

	query := m.resolveAnaphora(search)
	entry, tier := findInEntries(entries, query, true)
	if tier == TierNone {
		slog.Debug("matcher: no local match", "query", query, "catalog_size", len(entries))
		return Match{}, false, nil
	}
	slog.Debug("matcher: local match", "query", query, "tier", tier.String(), "name", entry.ReadableName)
	return Match{Entry: entry, Tier: tier, Query: query}, true, nil
}

// ResolveNames looks up each name using only the exact and subset tiers and
// without anaphora. It returns the entries found in input order and the names
// that did not match.
func (m *Matcher) ResolveNames(names []string) (found []catalog.Entry, notFound []string, err error) {
	entries, err := m.catalog.List()
	if err != nil {
		return nil, nil, fmt.Errorf("matcher: list catalog: %w", err)
	}
	for _, name := range names {
		if e, tier := findInEntries(entries, name, false); tier != TierNone {
			found = append(found, e)
			continue
		}
		notFound = append(notFound, name)
	}
	return found, notFound, nil
}

// resolveAnaphora substitutes the last description when search refers back
// to it.
func (m *Matcher) resolveAnaphora(search string) string {
	if m.history == nil {
		return search
	}
	words := phrase.Words(search)
	for i, w := range words {
		words[i] = strings.TrimFunc(w, unicode.IsPunct)
	}
	if !slices.ContainsFunc(anaphora, func(a string) bool { return slices.Contains(words, a) }) {
		return search
	}
	if last, ok := m.history.LastDescription(); ok {
		slog.Debug("matcher: resolved anaphora", "phrase", search, "description", last)
		return last
	}
	return search
}

// findInEntries runs the tiers over entries. When loose is false only the
// exact and subset tiers are tried.
func findInEntries(entries []catalog.Entry, query string, loose bool) (catalog.Entry, Tier) {
	key := phrase.ForMatching(query)
	words := strings.Fields(key)
	if len(words) == 0 {
		return catalog.Entry{}, TierNone
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = phrase.ForMatching(e.ReadableName)
	}

	for i, n := range names {
		if n == key {
			return entries[i], TierExact
		}
	}
	for i, n := range names {
		if isSubset(words, strings.Fields(n)) {
			return entries[i], TierSubset
		}
	}
	if !loose {
		return catalog.Entry{}, TierNone
	}
	for i, n := range names {
		if containsAny(n, words) {
			return entries[i], TierOverlap
		}
	}
	for _, e := range entries {
		fn := strings.ToLower(e.Filename)
		if strings.Contains(fn, key) || containsAny(fn, words) {
			return e, TierFilename
		}
	}
	return catalog.Entry{}, TierNone
}

func isSubset(words, of []string) bool {
	for _, w := range words {
		if !slices.Contains(of, w) {
			return false
		}
	}
	return true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
