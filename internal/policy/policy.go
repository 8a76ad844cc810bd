// Package policy decides, per play request, whether to look in the local
// cache first or go straight to the remote provider.
//
// The decision is driven by an explicit [Mode] and, in [ModeAuto], by an
// ordered table of lexical [Cue]s. Novelty cues are listed before repeat cues,
// so "play another one again" prefers the remote provider.
package policy

import (
	"fmt"
	"strings"
)

// Mode is the caller-supplied replay mode.
type Mode string

const (
	// ModeAgain prefers the local cache.
	ModeAgain Mode = "again"

	// ModeNew always goes to the remote provider.
	ModeNew Mode = "new"

	// ModeAuto inspects the description for cues.
	ModeAuto Mode = "auto"
)

// ParseMode converts s to a [Mode]. The empty string yields [ModeAuto].
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAgain, ModeNew, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("policy: invalid replay mode %q; valid values: again, new, auto", s)
	}
}

// Verdict is the outcome of a policy decision.
type Verdict int

const (
	// Local means try the cache first and fall back to remote on a miss.
	Local Verdict = iota

	// Remote means skip the cache.
	Remote
)

// String returns "local" or "remote".
func (v Verdict) String() string {
	if v == Remote {
		return "remote"
	}
	return "local"
}

// Cue maps a lowercase substring of a description to a verdict.
type Cue struct {
	Word    string
	Verdict Verdict
}

// DefaultCues is the built-in cue table, consulted in order.
var DefaultCues = []Cue{
	{"another", Remote},
	{"different", Remote},
	{"new", Remote},
	{"fresh", Remote},
	{"other", Remote},
	{"again", Local},
	{"same", Local},
	{"repeat", Local},
	{"replay", Local},
	{"once more", Local},
	{"it", Local},
}

// Decision explains a verdict.
type Decision struct {
	Verdict Verdict

	// Cue is the cue word that fired, empty when the mode forced the verdict
	// or no cue matched.
	Cue string

	// Forced is true when the mode alone decided.
	Forced bool
}

// Policy evaluates descriptions against a cue table.
type Policy struct {
	cues []Cue
}

// New returns a Policy using cues in order. A nil table uses [DefaultCues].
func New(cues []Cue) *Policy {
	if cues == nil {
		cues = DefaultCues
	}
	return &Policy{cues: cues}
}

// Explain returns the full decision for description under mode.
func (p *Policy) Explain(description string, mode Mode) Decision {
	switch mode {
	case ModeNew:
		return Decision{Verdict: Remote, Forced: true}
	case ModeAgain:
		return Decision{Verdict: Local, Forced: true}
	}

	lower := strings.ToLower(description)
	for _, c := range p.cues {
		if strings.Contains(lower, c.Word) {
			return Decision{Verdict: c.Verdict, Cue: c.Word}
		}
	}
	return Decision{Verdict: Local}
}

// PreferRemote reports whether description should skip the local cache.
func (p *Policy) PreferRemote(description string, mode Mode) bool {
	return p.Explain(description, mode).Verdict == Remote
}
